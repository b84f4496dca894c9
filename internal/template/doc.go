// Package template renders libvirt XML definitions.
//
// Every resource kind has a built-in definition generated with libvirtxml
// from the merged params. A blueprint may override it with a Go text/template
// document, either inline (template_content) or as a resource file relative
// to the blueprint directory (template_resource).
package template
