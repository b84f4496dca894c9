package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/spf13/afero"

	"github.com/jbweber/harrow/internal/params"
)

// Kind selects the built-in template.
type Kind string

const (
	KindDomain   Kind = "domain"
	KindNetwork  Kind = "network"
	KindPool     Kind = "pool"
	KindVolume   Kind = "volume"
	KindSnapshot Kind = "snapshot"
)

// Source is an optional template override: a resource path relative to the
// blueprint directory, or inline content. Resource wins when both are set.
type Source struct {
	Resource string
	Content  string
}

// Empty reports whether no override was given.
func (s Source) Empty() bool {
	return s.Resource == "" && s.Content == ""
}

// Renderer produces XML definitions from params.
type Renderer struct {
	// Resources resolves template and file resources. Nil disables them.
	Resources afero.Fs
}

// NewRenderer returns a Renderer reading resources below root.
func NewRenderer(root string) *Renderer {
	return &Renderer{Resources: afero.NewBasePathFs(afero.NewOsFs(), root)}
}

// Render returns the XML for kind. Overrides are Go text/template documents
// executed against the params mapping; without an override the built-in
// definition for kind is generated.
func (r *Renderer) Render(kind Kind, src Source, p params.Params) (string, error) {
	content := src.Content
	if src.Resource != "" {
		data, err := r.Resource(src.Resource)
		if err != nil {
			return "", err
		}
		content = string(data)
	}

	if content == "" {
		return Default(kind, p)
	}
	return Execute(string(kind), content, p)
}

// Resource reads a blueprint resource.
func (r *Renderer) Resource(path string) ([]byte, error) {
	if r.Resources == nil {
		return nil, fmt.Errorf("no resource directory configured for %s", path)
	}
	data, err := afero.ReadFile(r.Resources, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", path, err)
	}
	return data, nil
}

// Execute renders content with p as the template data.
func Execute(name, content string, p params.Params) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(p)); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

var funcs = template.FuncMap{
	"default": func(def, v any) any {
		if v == nil {
			return def
		}
		if s, ok := v.(string); ok && s == "" {
			return def
		}
		return v
	},
}

// Default returns the built-in definition for kind.
func Default(kind Kind, p params.Params) (string, error) {
	switch kind {
	case KindDomain:
		return Domain(p)
	case KindNetwork:
		return Network(p)
	case KindPool:
		return Pool(p)
	case KindVolume:
		return Volume(p)
	case KindSnapshot:
		return Snapshot(p)
	default:
		return "", fmt.Errorf("no built-in template for %q", kind)
	}
}

// trimHeader removes the XML declaration libvirtxml emits.
func trimHeader(xml string) string {
	xml = strings.TrimPrefix(xml, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>")
	return strings.TrimSpace(xml)
}
