package hvtest

import (
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/harrow/internal/hypervisor"
)

// Domain is a fake domain. Exported fields may be set before the code under
// test runs.
type Domain struct {
	h     *Hypervisor
	name  string
	xml   string
	state hypervisor.PowerState

	snapshots map[string]*Snapshot
	current   string
	cpuCalls  int

	// Sticky keeps the power state unchanged by lifecycle calls.
	Sticky bool
	// CPUTimes are returned by successive CPUTime calls; the last one repeats.
	CPUTimes   []uint64
	Memory     hypervisor.MemoryStats
	Interfaces []hypervisor.Interface

	MemoryKiB    uint64
	MaxMemoryKiB uint64
	Vcpus        uint32
}

var _ hypervisor.Domain = (*Domain)(nil)

func newDomain(h *Hypervisor, name string, state hypervisor.PowerState) *Domain {
	return &Domain{
		h:         h,
		name:      name,
		xml:       fmt.Sprintf("<domain type='qemu'><name>%s</name></domain>", name),
		state:     state,
		snapshots: make(map[string]*Snapshot),
	}
}

// AddDomain registers a domain in the given state.
func (h *Hypervisor) AddDomain(name string, state hypervisor.PowerState) *Domain {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := newDomain(h, name, state)
	h.domains[name] = d
	return d
}

// SetXML replaces the domain's XML description.
func (d *Domain) SetXML(xml string) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	d.xml = xml
}

// SetState forces the power state.
func (d *Domain) SetState(s hypervisor.PowerState) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	d.state = s
}

// PowerState returns the current power state without recording a call.
func (d *Domain) PowerState() hypervisor.PowerState {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	return d.state
}

// AddSnapshot registers a snapshot under parent ("" for a root).
func (d *Domain) AddSnapshot(name, parent string) *Snapshot {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	s := &Snapshot{d: d, name: name, parent: parent}
	s.xml = fmt.Sprintf("<domainsnapshot><name>%s</name></domainsnapshot>", name)
	d.snapshots[name] = s
	d.current = name
	return s
}

// SnapshotNames returns the sorted names of the remaining snapshots.
func (d *Domain) SnapshotNames() []string {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	names := make([]string, 0, len(d.snapshots))
	for n := range d.snapshots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (d *Domain) Name() string { return d.name }

func (d *Domain) State() (hypervisor.PowerState, error) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "state", d.name); err != nil {
		return hypervisor.StateNoState, err
	}
	return d.state, nil
}

func (d *Domain) XMLDesc() (string, error) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "xml", d.name); err != nil {
		return "", err
	}
	return d.xml, nil
}

func (d *Domain) transition(method string, to hypervisor.PowerState) error {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", method, d.name); err != nil {
		return err
	}
	if !d.Sticky {
		d.state = to
	}
	return nil
}

func (d *Domain) Create() error   { return d.transition("create", hypervisor.StateRunning) }
func (d *Domain) Shutdown() error { return d.transition("shutdown", hypervisor.StateShutoff) }
func (d *Domain) Destroy() error  { return d.transition("destroy", hypervisor.StateShutoff) }
func (d *Domain) Suspend() error  { return d.transition("suspend", hypervisor.StatePaused) }
func (d *Domain) Resume() error   { return d.transition("resume", hypervisor.StateRunning) }
func (d *Domain) Reboot() error   { return d.transition("reboot", hypervisor.StateRunning) }

func (d *Domain) Undefine(nvram bool) error {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	method := "undefine"
	if nvram {
		method = "undefine_nvram"
	}
	if err := d.h.record("domain", method, d.name); err != nil {
		return err
	}
	delete(d.h.domains, d.name)
	return nil
}

func (d *Domain) Snapshots() ([]hypervisor.Snapshot, error) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "snapshots", d.name); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(d.snapshots))
	for n := range d.snapshots {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]hypervisor.Snapshot, 0, len(names))
	for _, n := range names {
		out = append(out, d.snapshots[n])
	}
	return out, nil
}

func (d *Domain) LookupSnapshot(name string) (hypervisor.Snapshot, error) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("snapshot", "lookup", name); err != nil {
		return nil, err
	}
	s, ok := d.snapshots[name]
	if !ok {
		return nil, notFound("snapshot", name)
	}
	return s, nil
}

func (d *Domain) CreateSnapshot(xml string) (hypervisor.Snapshot, error) {
	var spec libvirtxml.DomainSnapshot
	if err := spec.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("invalid snapshot xml: %w", err)
	}

	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("snapshot", "create", spec.Name); err != nil {
		return nil, err
	}
	if _, ok := d.snapshots[spec.Name]; ok {
		return nil, fmt.Errorf("snapshot %q already exists", spec.Name)
	}
	s := &Snapshot{d: d, name: spec.Name, parent: d.current, xml: xml}
	d.snapshots[spec.Name] = s
	d.current = spec.Name
	return s, nil
}

func (d *Domain) Save(path string) error {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "save", path); err != nil {
		return err
	}
	if err := afero.WriteFile(d.h.Fs, path, []byte(d.xml), 0o600); err != nil {
		return err
	}
	d.state = hypervisor.StateShutoff
	return nil
}

func (d *Domain) CPUTime() (uint64, error) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "cputime", d.name); err != nil {
		return 0, err
	}
	if len(d.CPUTimes) == 0 {
		return 0, nil
	}
	i := d.cpuCalls
	if i >= len(d.CPUTimes) {
		i = len(d.CPUTimes) - 1
	}
	d.cpuCalls++
	return d.CPUTimes[i], nil
}

func (d *Domain) MemoryStats() (hypervisor.MemoryStats, error) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "memstats", d.name); err != nil {
		return hypervisor.MemoryStats{}, err
	}
	return d.Memory, nil
}

func (d *Domain) InterfaceAddresses(source hypervisor.AddressSource) ([]hypervisor.Interface, error) {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "interfaces", d.name); err != nil {
		return nil, err
	}
	out := make([]hypervisor.Interface, len(d.Interfaces))
	copy(out, d.Interfaces)
	return out, nil
}

func (d *Domain) SetMemory(kib uint64) error {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "setmemory", d.name); err != nil {
		return err
	}
	d.MemoryKiB = kib
	return nil
}

func (d *Domain) SetMaxMemory(kib uint64) error {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "setmaxmemory", d.name); err != nil {
		return err
	}
	d.MaxMemoryKiB = kib
	return nil
}

func (d *Domain) SetVcpus(count uint32) error {
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if err := d.h.record("domain", "setvcpus", d.name); err != nil {
		return err
	}
	d.Vcpus = count
	return nil
}

// Snapshot is a fake domain snapshot.
type Snapshot struct {
	d      *Domain
	name   string
	parent string
	xml    string
}

var _ hypervisor.Snapshot = (*Snapshot)(nil)

func (s *Snapshot) Name() string { return s.name }

func (s *Snapshot) Children() ([]string, error) {
	s.d.h.mu.Lock()
	defer s.d.h.mu.Unlock()
	if err := s.d.h.record("snapshot", "children", s.name); err != nil {
		return nil, err
	}
	var out []string
	for _, c := range s.d.snapshots {
		if c.parent == s.name {
			out = append(out, c.name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Snapshot) XMLDesc() (string, error) {
	s.d.h.mu.Lock()
	defer s.d.h.mu.Unlock()
	if err := s.d.h.record("snapshot", "xml", s.name); err != nil {
		return "", err
	}
	return s.xml, nil
}

func (s *Snapshot) Revert() error {
	s.d.h.mu.Lock()
	defer s.d.h.mu.Unlock()
	if err := s.d.h.record("snapshot", "revert", s.name); err != nil {
		return err
	}
	s.d.current = s.name
	return nil
}

// Delete removes the snapshot and reparents its children, as libvirt does.
func (s *Snapshot) Delete() error {
	s.d.h.mu.Lock()
	defer s.d.h.mu.Unlock()
	if err := s.d.h.record("snapshot", "delete", s.name); err != nil {
		return err
	}
	for _, c := range s.d.snapshots {
		if c.parent == s.name {
			c.parent = s.parent
		}
	}
	delete(s.d.snapshots, s.name)
	if s.d.current == s.name {
		s.d.current = s.parent
	}
	return nil
}
