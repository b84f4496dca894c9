package hypervisor

import "fmt"

// PowerState mirrors virDomainState.
type PowerState int

const (
	StateNoState     PowerState = 0
	StateRunning     PowerState = 1
	StateBlocked     PowerState = 2
	StatePaused      PowerState = 3
	StateShutdown    PowerState = 4
	StateShutoff     PowerState = 5
	StateCrashed     PowerState = 6
	StatePMSuspended PowerState = 7
)

func (s PowerState) String() string {
	switch s {
	case StateNoState:
		return "nostate"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StatePaused:
		return "paused"
	case StateShutdown:
		return "shutdown"
	case StateShutoff:
		return "shutoff"
	case StateCrashed:
		return "crashed"
	case StatePMSuspended:
		return "pmsuspended"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// PoolState mirrors virStoragePoolState.
type PoolState int

const (
	PoolInactive     PoolState = 0
	PoolBuilding     PoolState = 1
	PoolRunning      PoolState = 2
	PoolDegraded     PoolState = 3
	PoolInaccessible PoolState = 4
)

func (s PoolState) String() string {
	switch s {
	case PoolInactive:
		return "inactive"
	case PoolBuilding:
		return "building"
	case PoolRunning:
		return "running"
	case PoolDegraded:
		return "degraded"
	case PoolInaccessible:
		return "inaccessible"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// PoolInfo is the result of virStoragePoolGetInfo. Sizes are in bytes.
type PoolInfo struct {
	State      PoolState
	Capacity   uint64
	Allocation uint64
	Available  uint64
}

// MemoryStats holds balloon statistics in KiB. Zero means not reported.
type MemoryStats struct {
	Actual    uint64
	Available uint64
	Unused    uint64
	RSS       uint64
}

// AddressSource selects where interface addresses are read from.
type AddressSource int

const (
	SourceLease AddressSource = 0
	SourceAgent AddressSource = 1
	SourceARP   AddressSource = 2
)

// ParseAddressSource maps a configuration string to an AddressSource.
func ParseAddressSource(s string) (AddressSource, error) {
	switch s {
	case "", "lease":
		return SourceLease, nil
	case "agent":
		return SourceAgent, nil
	case "arp":
		return SourceARP, nil
	default:
		return SourceLease, fmt.Errorf("unknown address source %q", s)
	}
}

// AddrType mirrors virIPAddrType.
type AddrType int

const (
	AddrIPv4 AddrType = 0
	AddrIPv6 AddrType = 1
)

// IPAddr is one address reported on a guest interface.
type IPAddr struct {
	Type   AddrType
	Addr   string
	Prefix uint
}

// Interface is a guest network interface with its addresses.
type Interface struct {
	Name  string
	MAC   string
	Addrs []IPAddr
}

// Lease is a DHCP lease handed out by a virtual network.
type Lease struct {
	Iface    string
	MAC      string
	IPAddr   string
	Prefix   uint
	Hostname string
	Type     AddrType
}
