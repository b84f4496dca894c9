package hvtest

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/harrow/internal/hypervisor"
)

// Pool is a fake storage pool.
type Pool struct {
	h     *Hypervisor
	name  string
	xml   string
	state hypervisor.PoolState

	volumes map[string]*Volume

	// Sticky keeps the pool state unchanged by Create and Destroy.
	Sticky bool
	Dir    string
}

var _ hypervisor.Pool = (*Pool)(nil)

func newPool(h *Hypervisor, name string) *Pool {
	return &Pool{
		h:       h,
		name:    name,
		xml:     fmt.Sprintf("<pool type='dir'><name>%s</name></pool>", name),
		state:   hypervisor.PoolInactive,
		volumes: make(map[string]*Volume),
		Dir:     path.Join("/var/lib/libvirt/images", name),
	}
}

// AddPool registers a pool in the given state.
func (h *Hypervisor) AddPool(name string, state hypervisor.PoolState) *Pool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := newPool(h, name)
	p.state = state
	h.pools[name] = p
	return p
}

// AddVolume registers a volume in the pool.
func (p *Pool) AddVolume(name string) *Volume {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	v := p.newVolume(name, "")
	p.volumes[name] = v
	return v
}

// Volume returns the named volume or nil.
func (p *Pool) Volume(name string) *Volume {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	return p.volumes[name]
}

// PoolState returns the current state without recording a call.
func (p *Pool) PoolState() hypervisor.PoolState {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	return p.state
}

// SetState forces the pool state.
func (p *Pool) SetState(s hypervisor.PoolState) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	p.state = s
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Info() (hypervisor.PoolInfo, error) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if err := p.h.record("pool", "info", p.name); err != nil {
		return hypervisor.PoolInfo{}, err
	}
	return hypervisor.PoolInfo{State: p.state}, nil
}

func (p *Pool) IsActive() (bool, error) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if err := p.h.record("pool", "active", p.name); err != nil {
		return false, err
	}
	return p.state == hypervisor.PoolRunning, nil
}

func (p *Pool) XMLDesc() (string, error) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if err := p.h.record("pool", "xml", p.name); err != nil {
		return "", err
	}
	return p.xml, nil
}

func (p *Pool) Build() error {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	return p.h.record("pool", "build", p.name)
}

func (p *Pool) Create() error {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if err := p.h.record("pool", "create", p.name); err != nil {
		return err
	}
	if !p.Sticky {
		p.state = hypervisor.PoolRunning
	}
	return nil
}

func (p *Pool) Destroy() error {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if err := p.h.record("pool", "destroy", p.name); err != nil {
		return err
	}
	if !p.Sticky {
		p.state = hypervisor.PoolInactive
	}
	return nil
}

func (p *Pool) Delete() error {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	return p.h.record("pool", "delete", p.name)
}

func (p *Pool) Undefine() error {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if err := p.h.record("pool", "undefine", p.name); err != nil {
		return err
	}
	delete(p.h.pools, p.name)
	return nil
}

func (p *Pool) LookupVolume(name string) (hypervisor.Volume, error) {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if err := p.h.record("volume", "lookup", name); err != nil {
		return nil, err
	}
	v, ok := p.volumes[name]
	if !ok {
		return nil, notFound("volume", name)
	}
	return v, nil
}

func (p *Pool) CreateVolume(xml string) (hypervisor.Volume, error) {
	var spec libvirtxml.StorageVolume
	if err := spec.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("invalid volume xml: %w", err)
	}

	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	if err := p.h.record("volume", "create", spec.Name); err != nil {
		return nil, err
	}
	if _, ok := p.volumes[spec.Name]; ok {
		return nil, fmt.Errorf("volume %q already exists", spec.Name)
	}
	target := ""
	if spec.Target != nil {
		target = spec.Target.Path
	}
	v := p.newVolume(spec.Name, target)
	v.xml = xml
	p.volumes[spec.Name] = v
	return v, nil
}

func (p *Pool) newVolume(name, target string) *Volume {
	if target == "" {
		target = path.Join(p.Dir, name)
	}
	return &Volume{
		pool: p,
		name: name,
		path: target,
		xml:  fmt.Sprintf("<volume><name>%s</name></volume>", name),
	}
}

// Volume is a fake storage volume. Uploaded bytes are kept in Data.
type Volume struct {
	pool *Pool
	name string
	path string
	xml  string

	Data  []byte
	Wipes int
}

var _ hypervisor.Volume = (*Volume)(nil)

func (v *Volume) Name() string { return v.name }

func (v *Volume) Path() (string, error) {
	v.pool.h.mu.Lock()
	defer v.pool.h.mu.Unlock()
	if err := v.pool.h.record("volume", "path", v.name); err != nil {
		return "", err
	}
	return v.path, nil
}

func (v *Volume) XMLDesc() (string, error) {
	v.pool.h.mu.Lock()
	defer v.pool.h.mu.Unlock()
	if err := v.pool.h.record("volume", "xml", v.name); err != nil {
		return "", err
	}
	return v.xml, nil
}

// SetXML replaces the volume's XML description.
func (v *Volume) SetXML(xml string) {
	v.pool.h.mu.Lock()
	defer v.pool.h.mu.Unlock()
	v.xml = xml
}

func (v *Volume) Wipe() error {
	v.pool.h.mu.Lock()
	defer v.pool.h.mu.Unlock()
	if err := v.pool.h.record("volume", "wipe", v.name); err != nil {
		return err
	}
	v.Wipes++
	for i := range v.Data {
		v.Data[i] = 0
	}
	return nil
}

func (v *Volume) Delete() error {
	v.pool.h.mu.Lock()
	defer v.pool.h.mu.Unlock()
	if err := v.pool.h.record("volume", "delete", v.name); err != nil {
		return err
	}
	delete(v.pool.volumes, v.name)
	return nil
}

func (v *Volume) Upload(ctx context.Context, r io.Reader, offset, length uint64) error {
	data, err := io.ReadAll(io.LimitReader(r, int64(length)))
	if err != nil {
		return fmt.Errorf("read upload stream: %w", err)
	}

	v.pool.h.mu.Lock()
	defer v.pool.h.mu.Unlock()
	if err := v.pool.h.record("volume", "upload", v.name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	end := offset + uint64(len(data))
	if uint64(len(v.Data)) < end {
		grown := make([]byte, end)
		copy(grown, v.Data)
		v.Data = grown
	}
	copy(v.Data[offset:], data)
	return nil
}

// VolumeNames returns the sorted volume names in the pool.
func (p *Pool) VolumeNames() []string {
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	names := make([]string, 0, len(p.volumes))
	for n := range p.volumes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
