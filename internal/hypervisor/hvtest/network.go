package hvtest

import (
	"fmt"

	"github.com/jbweber/harrow/internal/hypervisor"
)

// Network is a fake transient network.
type Network struct {
	h    *Hypervisor
	name string
	xml  string

	Active bool
	Leases []hypervisor.Lease
}

var _ hypervisor.Network = (*Network)(nil)

// AddNetwork registers an active network.
func (h *Hypervisor) AddNetwork(name string) *Network {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := &Network{
		h:      h,
		name:   name,
		xml:    fmt.Sprintf("<network><name>%s</name></network>", name),
		Active: true,
	}
	h.networks[name] = n
	return n
}

// SetLeases replaces the DHCP lease table.
func (n *Network) SetLeases(leases ...hypervisor.Lease) {
	n.h.mu.Lock()
	defer n.h.mu.Unlock()
	n.Leases = leases
}

func (n *Network) Name() string { return n.name }

func (n *Network) IsActive() (bool, error) {
	n.h.mu.Lock()
	defer n.h.mu.Unlock()
	if err := n.h.record("network", "active", n.name); err != nil {
		return false, err
	}
	return n.Active, nil
}

func (n *Network) XMLDesc() (string, error) {
	n.h.mu.Lock()
	defer n.h.mu.Unlock()
	if err := n.h.record("network", "xml", n.name); err != nil {
		return "", err
	}
	return n.xml, nil
}

// SetXML replaces the network's XML description.
func (n *Network) SetXML(xml string) {
	n.h.mu.Lock()
	defer n.h.mu.Unlock()
	n.xml = xml
}

// Destroy stops the network; transient networks disappear.
func (n *Network) Destroy() error {
	n.h.mu.Lock()
	defer n.h.mu.Unlock()
	if err := n.h.record("network", "destroy", n.name); err != nil {
		return err
	}
	n.Active = false
	delete(n.h.networks, n.name)
	return nil
}

func (n *Network) DHCPLeases() ([]hypervisor.Lease, error) {
	n.h.mu.Lock()
	defer n.h.mu.Unlock()
	if err := n.h.record("network", "leases", n.name); err != nil {
		return nil, err
	}
	out := make([]hypervisor.Lease, len(n.Leases))
	copy(out, n.Leases)
	return out, nil
}
