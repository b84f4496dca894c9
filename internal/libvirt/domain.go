package libvirt

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/harrow/internal/hypervisor"
)

type domain struct {
	l *libvirt.Libvirt
	d libvirt.Domain
}

func (d *domain) Name() string { return d.d.Name }

func (d *domain) State() (hypervisor.PowerState, error) {
	state, _, err := d.l.DomainGetState(d.d, 0)
	if err != nil {
		return hypervisor.StateNoState, fmt.Errorf("failed to get state of domain %s: %w", d.d.Name, err)
	}
	return hypervisor.PowerState(state), nil
}

func (d *domain) XMLDesc() (string, error) {
	xml, err := d.l.DomainGetXMLDesc(d.d, 0)
	if err != nil {
		return "", fmt.Errorf("failed to get XML of domain %s: %w", d.d.Name, err)
	}
	return xml, nil
}

func (d *domain) Create() error {
	return d.wrap("start", d.l.DomainCreate(d.d))
}

func (d *domain) Shutdown() error {
	return d.wrap("shut down", d.l.DomainShutdown(d.d))
}

func (d *domain) Destroy() error {
	return d.wrap("destroy", d.l.DomainDestroy(d.d))
}

func (d *domain) Suspend() error {
	return d.wrap("suspend", d.l.DomainSuspend(d.d))
}

func (d *domain) Resume() error {
	return d.wrap("resume", d.l.DomainResume(d.d))
}

func (d *domain) Reboot() error {
	return d.wrap("reboot", d.l.DomainReboot(d.d, 0))
}

func (d *domain) Undefine(nvram bool) error {
	if nvram {
		err := d.l.DomainUndefineFlags(d.d, libvirt.DomainUndefineNvram)
		if isUnsupported(err) {
			return fmt.Errorf("failed to undefine domain %s with nvram: %w: %v", d.d.Name, hypervisor.ErrUnsupported, err)
		}
		return d.wrap("undefine", err)
	}
	return d.wrap("undefine", d.l.DomainUndefine(d.d))
}

func (d *domain) Snapshots() ([]hypervisor.Snapshot, error) {
	snaps, _, err := d.l.DomainListAllSnapshots(d.d, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots of domain %s: %w", d.d.Name, err)
	}
	out := make([]hypervisor.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, &snapshot{l: d.l, s: s})
	}
	return out, nil
}

func (d *domain) LookupSnapshot(name string) (hypervisor.Snapshot, error) {
	s, err := d.l.DomainSnapshotLookupByName(d.d, name, 0)
	if err != nil {
		return nil, lookupError("snapshot", name, err)
	}
	return &snapshot{l: d.l, s: s}, nil
}

func (d *domain) CreateSnapshot(xml string) (hypervisor.Snapshot, error) {
	s, err := d.l.DomainSnapshotCreateXML(d.d, xml, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot of domain %s: %w", d.d.Name, err)
	}
	return &snapshot{l: d.l, s: s}, nil
}

func (d *domain) Save(path string) error {
	return d.wrap("save", d.l.DomainSave(d.d, path))
}

func (d *domain) CPUTime() (uint64, error) {
	_, _, _, _, cpuTime, err := d.l.DomainGetInfo(d.d)
	if err != nil {
		return 0, fmt.Errorf("failed to get info of domain %s: %w", d.d.Name, err)
	}
	return cpuTime, nil
}

func (d *domain) MemoryStats() (hypervisor.MemoryStats, error) {
	stats, err := d.l.DomainMemoryStats(d.d, memStatCount, 0)
	if err != nil {
		return hypervisor.MemoryStats{}, fmt.Errorf("failed to get memory stats of domain %s: %w", d.d.Name, err)
	}
	return convertMemoryStats(stats), nil
}

func (d *domain) InterfaceAddresses(source hypervisor.AddressSource) ([]hypervisor.Interface, error) {
	ifaces, err := d.l.DomainInterfaceAddresses(d.d, uint32(source), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface addresses of domain %s: %w", d.d.Name, err)
	}
	return convertInterfaces(ifaces), nil
}

func (d *domain) SetMemory(kib uint64) error {
	return d.wrap("set memory of", d.l.DomainSetMemoryFlags(d.d, kib, 0))
}

func (d *domain) SetMaxMemory(kib uint64) error {
	return d.wrap("set max memory of", d.l.DomainSetMaxMemory(d.d, kib))
}

func (d *domain) SetVcpus(count uint32) error {
	return d.wrap("set vcpus of", d.l.DomainSetVcpusFlags(d.d, count, 0))
}

func (d *domain) wrap(action string, err error) error {
	if err != nil {
		return fmt.Errorf("failed to %s domain %s: %w", action, d.d.Name, err)
	}
	return nil
}

type snapshot struct {
	l *libvirt.Libvirt
	s libvirt.DomainSnapshot
}

func (s *snapshot) Name() string { return s.s.Name }

func (s *snapshot) Children() ([]string, error) {
	children, _, err := s.l.DomainSnapshotListAllChildren(s.s, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of snapshot %s: %w", s.s.Name, err)
	}
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *snapshot) XMLDesc() (string, error) {
	xml, err := s.l.DomainSnapshotGetXMLDesc(s.s, 0)
	if err != nil {
		return "", fmt.Errorf("failed to get XML of snapshot %s: %w", s.s.Name, err)
	}
	return xml, nil
}

func (s *snapshot) Revert() error {
	if err := s.l.DomainRevertToSnapshot(s.s, 0); err != nil {
		return fmt.Errorf("failed to revert to snapshot %s: %w", s.s.Name, err)
	}
	return nil
}

func (s *snapshot) Delete() error {
	if err := s.l.DomainSnapshotDelete(s.s, 0); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", s.s.Name, err)
	}
	return nil
}
