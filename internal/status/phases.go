// Package status derives the display phase of an instance.
package status

import (
	"context"
	"errors"

	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/state"
)

// Phase is the lifecycle phase of an instance.
type Phase string

const (
	// PhaseAbsent means no hypervisor object is bound.
	PhaseAbsent Phase = "Absent"
	// PhaseCreated means an object is bound; its live state is unknown or
	// the kind has no power state.
	PhaseCreated Phase = "Created"
	// PhaseRunning means the domain is running or the pool is active.
	PhaseRunning Phase = "Running"
	// PhaseSuspended means the domain is paused.
	PhaseSuspended Phase = "Suspended"
	// PhaseShutoff means the domain or pool is stopped.
	PhaseShutoff Phase = "Shutoff"
	// PhaseMissing means the bound object no longer exists.
	PhaseMissing Phase = "Missing"
)

// Derive returns the phase known from stored state alone.
func Derive(inst *state.Instance) Phase {
	if !inst.HasResource() {
		return PhaseAbsent
	}
	return PhaseCreated
}

// FromPower maps a domain power state.
func FromPower(s hypervisor.PowerState) Phase {
	switch s {
	case hypervisor.StateRunning, hypervisor.StateBlocked:
		return PhaseRunning
	case hypervisor.StatePaused, hypervisor.StatePMSuspended:
		return PhaseSuspended
	case hypervisor.StateShutoff, hypervisor.StateShutdown, hypervisor.StateCrashed:
		return PhaseShutoff
	default:
		return PhaseCreated
	}
}

// FromPool maps a storage pool state.
func FromPool(s hypervisor.PoolState) Phase {
	switch s {
	case hypervisor.PoolRunning:
		return PhaseRunning
	case hypervisor.PoolInactive:
		return PhaseShutoff
	default:
		return PhaseCreated
	}
}

// FromActive maps the active flag of a network.
func FromActive(active bool) Phase {
	if active {
		return PhaseRunning
	}
	return PhaseShutoff
}

// Live queries the hypervisor for the phase of inst. Kinds without a live
// state, and instances without a bound object, fall back to Derive.
func Live(ctx context.Context, opener hypervisor.Opener, auth string, inst *state.Instance) (Phase, error) {
	if !inst.HasResource() {
		return PhaseAbsent, nil
	}

	var probe func(c hypervisor.Conn) (Phase, error)
	switch inst.Kind() {
	case "domain":
		probe = func(c hypervisor.Conn) (Phase, error) {
			d, err := c.LookupDomain(inst.ResourceID())
			if err != nil {
				return "", err
			}
			s, err := d.State()
			return FromPower(s), err
		}
	case "network":
		probe = func(c hypervisor.Conn) (Phase, error) {
			n, err := c.LookupNetwork(inst.ResourceID())
			if err != nil {
				return "", err
			}
			active, err := n.IsActive()
			return FromActive(active), err
		}
	case "pool":
		probe = func(c hypervisor.Conn) (Phase, error) {
			p, err := c.LookupPool(inst.ResourceID())
			if err != nil {
				return "", err
			}
			info, err := p.Info()
			return FromPool(info.State), err
		}
	default:
		return Derive(inst), nil
	}

	c, err := opener.Open(ctx, auth)
	if err != nil {
		return "", err
	}
	defer c.Close() //nolint:errcheck

	phase, err := probe(c)
	if errors.Is(err, hypervisor.ErrNotFound) {
		return PhaseMissing, nil
	}
	if err != nil {
		return "", err
	}
	return phase, nil
}

// IsActive reports whether the phase describes a started resource.
func IsActive(p Phase) bool {
	return p == PhaseRunning || p == PhaseSuspended
}
