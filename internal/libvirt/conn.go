package libvirt

import (
	"fmt"

	"github.com/jbweber/harrow/internal/hypervisor"
)

func (c *Client) LookupDomain(name string) (hypervisor.Domain, error) {
	d, err := c.libvirt.DomainLookupByName(name)
	if err != nil {
		return nil, lookupError("domain", name, err)
	}
	return &domain{l: c.libvirt, d: d}, nil
}

func (c *Client) DefineDomain(xml string) (hypervisor.Domain, error) {
	d, err := c.libvirt.DomainDefineXML(xml)
	if err != nil {
		return nil, fmt.Errorf("failed to define domain: %w", err)
	}
	return &domain{l: c.libvirt, d: d}, nil
}

func (c *Client) RestoreDomain(path string) error {
	if err := c.libvirt.DomainRestore(path); err != nil {
		return fmt.Errorf("failed to restore domain from %s: %w", path, err)
	}
	return nil
}

func (c *Client) LookupNetwork(name string) (hypervisor.Network, error) {
	n, err := c.libvirt.NetworkLookupByName(name)
	if err != nil {
		return nil, lookupError("network", name, err)
	}
	return &network{l: c.libvirt, n: n}, nil
}

// CreateNetwork starts a transient network from xml.
func (c *Client) CreateNetwork(xml string) (hypervisor.Network, error) {
	n, err := c.libvirt.NetworkCreateXML(xml)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	return &network{l: c.libvirt, n: n}, nil
}

func (c *Client) LookupPool(name string) (hypervisor.Pool, error) {
	p, err := c.libvirt.StoragePoolLookupByName(name)
	if err != nil {
		return nil, lookupError("storage pool", name, err)
	}
	return &pool{l: c.libvirt, p: p}, nil
}

func (c *Client) DefinePool(xml string) (hypervisor.Pool, error) {
	p, err := c.libvirt.StoragePoolDefineXML(xml, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to define storage pool: %w", err)
	}
	return &pool{l: c.libvirt, p: p}, nil
}
