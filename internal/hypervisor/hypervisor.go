package hypervisor

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned (possibly wrapped) by lookups when the named object
// does not exist on the hypervisor.
var ErrNotFound = errors.New("not found")

// ErrUnsupported is returned (possibly wrapped) when the hypervisor does not
// implement a requested variant of a call.
var ErrUnsupported = errors.New("unsupported")

// Opener opens a hypervisor connection for a libvirt auth value such as
// "qemu:///system" or "qemu+tcp://host/system".
type Opener interface {
	Open(ctx context.Context, auth string) (Conn, error)
}

// Conn is a single hypervisor connection. It is scoped to one operation and
// must be closed by the caller.
type Conn interface {
	Close() error

	LookupDomain(name string) (Domain, error)
	DefineDomain(xml string) (Domain, error)
	// RestoreDomain restores a domain previously saved with Domain.Save.
	RestoreDomain(path string) error

	LookupNetwork(name string) (Network, error)
	CreateNetwork(xml string) (Network, error)

	LookupPool(name string) (Pool, error)
	DefinePool(xml string) (Pool, error)
}

// Domain is a handle to a defined virtual machine.
type Domain interface {
	Name() string
	State() (PowerState, error)
	XMLDesc() (string, error)

	Create() error
	Shutdown() error
	Destroy() error
	Suspend() error
	Resume() error
	Reboot() error
	// Undefine removes the domain definition. With nvram set the NVRAM
	// file is removed as well; hypervisors without that capability fail
	// the call with ErrUnsupported.
	Undefine(nvram bool) error

	Snapshots() ([]Snapshot, error)
	LookupSnapshot(name string) (Snapshot, error)
	CreateSnapshot(xml string) (Snapshot, error)
	// Save writes memory and device state to path and stops the domain.
	Save(path string) error

	// CPUTime reports consumed CPU time in nanoseconds.
	CPUTime() (uint64, error)
	MemoryStats() (MemoryStats, error)
	InterfaceAddresses(source AddressSource) ([]Interface, error)

	SetMemory(kib uint64) error
	SetMaxMemory(kib uint64) error
	SetVcpus(count uint32) error
}

// Snapshot is a handle to a hypervisor-native domain snapshot.
type Snapshot interface {
	Name() string
	// Children lists the names of direct child snapshots.
	Children() ([]string, error)
	XMLDesc() (string, error)
	Revert() error
	Delete() error
}

// Network is a handle to a virtual network.
type Network interface {
	Name() string
	IsActive() (bool, error)
	XMLDesc() (string, error)
	Destroy() error
	DHCPLeases() ([]Lease, error)
}

// Pool is a handle to a storage pool.
type Pool interface {
	Name() string
	Info() (PoolInfo, error)
	IsActive() (bool, error)
	XMLDesc() (string, error)

	Build() error
	Create() error
	Destroy() error
	Delete() error
	Undefine() error

	LookupVolume(name string) (Volume, error)
	CreateVolume(xml string) (Volume, error)
}

// Volume is a handle to a storage volume inside a pool.
type Volume interface {
	Name() string
	Path() (string, error)
	XMLDesc() (string, error)

	Wipe() error
	Delete() error
	// Upload streams length bytes from r into the volume starting at offset.
	Upload(ctx context.Context, r io.Reader, offset, length uint64) error
}
