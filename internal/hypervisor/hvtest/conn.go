package hvtest

import (
	"fmt"

	"github.com/spf13/afero"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/harrow/internal/hypervisor"
)

type conn struct {
	h      *Hypervisor
	closed bool
}

func (c *conn) Close() error {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.h.Closes++
	return nil
}

func (c *conn) LookupDomain(name string) (hypervisor.Domain, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if err := c.h.record("domain", "lookup", name); err != nil {
		return nil, err
	}
	d, ok := c.h.domains[name]
	if !ok {
		return nil, notFound("domain", name)
	}
	return d, nil
}

func (c *conn) DefineDomain(xml string) (hypervisor.Domain, error) {
	var spec libvirtxml.Domain
	if err := spec.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("invalid domain xml: %w", err)
	}

	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if err := c.h.record("domain", "define", spec.Name); err != nil {
		return nil, err
	}
	d, ok := c.h.domains[spec.Name]
	if !ok {
		d = newDomain(c.h, spec.Name, hypervisor.StateShutoff)
		c.h.domains[spec.Name] = d
	}
	d.xml = xml
	return d, nil
}

func (c *conn) RestoreDomain(path string) error {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if err := c.h.record("domain", "restore", path); err != nil {
		return err
	}

	data, err := afero.ReadFile(c.h.Fs, path)
	if err != nil {
		return fmt.Errorf("read saved state %s: %w", path, err)
	}

	var spec libvirtxml.Domain
	if err := spec.Unmarshal(string(data)); err != nil {
		return fmt.Errorf("invalid saved state %s: %w", path, err)
	}

	d, ok := c.h.domains[spec.Name]
	if !ok {
		d = newDomain(c.h, spec.Name, hypervisor.StateShutoff)
		d.xml = string(data)
		c.h.domains[spec.Name] = d
	}
	d.state = hypervisor.StateRunning
	return nil
}

func (c *conn) LookupNetwork(name string) (hypervisor.Network, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if err := c.h.record("network", "lookup", name); err != nil {
		return nil, err
	}
	n, ok := c.h.networks[name]
	if !ok {
		return nil, notFound("network", name)
	}
	return n, nil
}

func (c *conn) CreateNetwork(xml string) (hypervisor.Network, error) {
	var spec libvirtxml.Network
	if err := spec.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("invalid network xml: %w", err)
	}

	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if err := c.h.record("network", "create", spec.Name); err != nil {
		return nil, err
	}
	if _, ok := c.h.networks[spec.Name]; ok {
		return nil, fmt.Errorf("network %q already exists", spec.Name)
	}
	n := &Network{h: c.h, name: spec.Name, xml: xml, Active: true}
	c.h.networks[spec.Name] = n
	return n, nil
}

func (c *conn) LookupPool(name string) (hypervisor.Pool, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if err := c.h.record("pool", "lookup", name); err != nil {
		return nil, err
	}
	p, ok := c.h.pools[name]
	if !ok {
		return nil, notFound("pool", name)
	}
	return p, nil
}

func (c *conn) DefinePool(xml string) (hypervisor.Pool, error) {
	var spec libvirtxml.StoragePool
	if err := spec.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("invalid pool xml: %w", err)
	}

	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	if err := c.h.record("pool", "define", spec.Name); err != nil {
		return nil, err
	}
	p, ok := c.h.pools[spec.Name]
	if !ok {
		p = newPool(c.h, spec.Name)
		c.h.pools[spec.Name] = p
	}
	p.xml = xml
	return p, nil
}
