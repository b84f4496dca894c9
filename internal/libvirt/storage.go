package libvirt

import (
	"context"
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/harrow/internal/hypervisor"
)

type pool struct {
	l *libvirt.Libvirt
	p libvirt.StoragePool
}

func (p *pool) Name() string { return p.p.Name }

func (p *pool) Info() (hypervisor.PoolInfo, error) {
	state, capacity, allocation, available, err := p.l.StoragePoolGetInfo(p.p)
	if err != nil {
		return hypervisor.PoolInfo{}, fmt.Errorf("failed to get info of pool %s: %w", p.p.Name, err)
	}
	return hypervisor.PoolInfo{
		State:      hypervisor.PoolState(state),
		Capacity:   capacity,
		Allocation: allocation,
		Available:  available,
	}, nil
}

func (p *pool) IsActive() (bool, error) {
	active, err := p.l.StoragePoolIsActive(p.p)
	if err != nil {
		return false, fmt.Errorf("failed to check pool %s: %w", p.p.Name, err)
	}
	return active == 1, nil
}

func (p *pool) XMLDesc() (string, error) {
	xml, err := p.l.StoragePoolGetXMLDesc(p.p, 0)
	if err != nil {
		return "", fmt.Errorf("failed to get XML of pool %s: %w", p.p.Name, err)
	}
	return xml, nil
}

func (p *pool) Build() error {
	return p.wrap("build", p.l.StoragePoolBuild(p.p, 0))
}

func (p *pool) Create() error {
	return p.wrap("start", p.l.StoragePoolCreate(p.p, 0))
}

func (p *pool) Destroy() error {
	return p.wrap("stop", p.l.StoragePoolDestroy(p.p))
}

func (p *pool) Delete() error {
	return p.wrap("delete", p.l.StoragePoolDelete(p.p, 0))
}

func (p *pool) Undefine() error {
	return p.wrap("undefine", p.l.StoragePoolUndefine(p.p))
}

func (p *pool) LookupVolume(name string) (hypervisor.Volume, error) {
	v, err := p.l.StorageVolLookupByName(p.p, name)
	if err != nil {
		return nil, lookupError("storage volume", name, err)
	}
	return &volume{l: p.l, v: v}, nil
}

func (p *pool) CreateVolume(xml string) (hypervisor.Volume, error) {
	v, err := p.l.StorageVolCreateXML(p.p, xml, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create volume in pool %s: %w", p.p.Name, err)
	}
	return &volume{l: p.l, v: v}, nil
}

func (p *pool) wrap(action string, err error) error {
	if err != nil {
		return fmt.Errorf("failed to %s pool %s: %w", action, p.p.Name, err)
	}
	return nil
}

type volume struct {
	l *libvirt.Libvirt
	v libvirt.StorageVol
}

func (v *volume) Name() string { return v.v.Name }

func (v *volume) Path() (string, error) {
	path, err := v.l.StorageVolGetPath(v.v)
	if err != nil {
		return "", fmt.Errorf("failed to get path of volume %s: %w", v.v.Name, err)
	}
	return path, nil
}

func (v *volume) XMLDesc() (string, error) {
	xml, err := v.l.StorageVolGetXMLDesc(v.v, 0)
	if err != nil {
		return "", fmt.Errorf("failed to get XML of volume %s: %w", v.v.Name, err)
	}
	return xml, nil
}

func (v *volume) Wipe() error {
	if err := v.l.StorageVolWipe(v.v, 0); err != nil {
		return fmt.Errorf("failed to wipe volume %s: %w", v.v.Name, err)
	}
	return nil
}

func (v *volume) Delete() error {
	if err := v.l.StorageVolDelete(v.v, 0); err != nil {
		return fmt.Errorf("failed to delete volume %s: %w", v.v.Name, err)
	}
	return nil
}

// Upload streams r into the volume. The stream is not interruptible once
// started; ctx is only checked before the transfer begins.
func (v *volume) Upload(ctx context.Context, r io.Reader, offset, length uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.l.StorageVolUpload(v.v, r, offset, length, 0); err != nil {
		return fmt.Errorf("failed to upload to volume %s: %w", v.v.Name, err)
	}
	return nil
}
