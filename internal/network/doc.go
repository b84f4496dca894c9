// Package network reconciles libvirt virtual networks and links them to
// domains by polling their DHCP lease tables.
//
// Networks are created transient: Delete destroys them and libvirt forgets
// the definition at the same time.
package network
