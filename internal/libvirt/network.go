package libvirt

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/harrow/internal/hypervisor"
)

type network struct {
	l *libvirt.Libvirt
	n libvirt.Network
}

func (n *network) Name() string { return n.n.Name }

func (n *network) IsActive() (bool, error) {
	active, err := n.l.NetworkIsActive(n.n)
	if err != nil {
		return false, fmt.Errorf("failed to check network %s: %w", n.n.Name, err)
	}
	return active == 1, nil
}

func (n *network) XMLDesc() (string, error) {
	xml, err := n.l.NetworkGetXMLDesc(n.n, 0)
	if err != nil {
		return "", fmt.Errorf("failed to get XML of network %s: %w", n.n.Name, err)
	}
	return xml, nil
}

func (n *network) Destroy() error {
	if err := n.l.NetworkDestroy(n.n); err != nil {
		return fmt.Errorf("failed to destroy network %s: %w", n.n.Name, err)
	}
	return nil
}

func (n *network) DHCPLeases() ([]hypervisor.Lease, error) {
	leases, _, err := n.l.NetworkGetDhcpLeases(n.n, libvirt.OptString{}, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get DHCP leases of network %s: %w", n.n.Name, err)
	}
	return convertLeases(leases), nil
}
