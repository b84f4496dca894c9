package vm

import (
	"errors"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/reconcile"
)

// Delete removes an owned domain: snapshots leaves first, then a forced
// stop, then the definition together with its NVRAM. Without a bound
// domain, or for an external one, it does nothing.
func Delete(op *reconcile.Op) error {
	op.Log.Info("delete")
	return domains.Teardown(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		return forceDelete(op, d)
	})
}

// forceDelete removes the domain without touching instance state.
func forceDelete(op *reconcile.Op, d hypervisor.Domain) error {
	if err := purgeSnapshots(op, d); err != nil {
		return err
	}

	s, err := powerState(d)
	if err != nil {
		return err
	}
	if s != hypervisor.StateShutoff {
		if err := d.Destroy(); err != nil {
			return fault.WrapRecoverable(err, "Can not destroy guest domain.")
		}
	}

	err = d.Undefine(true)
	if errors.Is(err, hypervisor.ErrUnsupported) {
		op.Log.Infof("Non critical error: %v", err)
		if err := d.Undefine(false); err != nil {
			return fault.WrapRecoverable(err, "Can not undefine guest domain.")
		}
		return nil
	}
	if err != nil {
		return fault.WrapRecoverable(err, "Can not undefine guest domain with NVRAM.")
	}
	return nil
}

// purgeSnapshots deletes snapshots without children until none are left.
// Each pass can only remove the current leaves, so at most one pass per
// snapshot is needed.
func purgeSnapshots(op *reconcile.Op, d hypervisor.Domain) error {
	snapshots, err := d.Snapshots()
	if err != nil {
		return fault.WrapRecoverable(err, "Can not list snapshots of domain %s", d.Name())
	}
	if len(snapshots) == 0 {
		return nil
	}
	op.Log.Infof("Domain has %d snapshots.", len(snapshots))

	passes := len(snapshots)
	for i := 0; i < passes && len(snapshots) > 0; i++ {
		for _, snap := range snapshots {
			children, err := snap.Children()
			if err != nil {
				return fault.WrapRecoverable(err, "Can not list children of snapshot %s", snap.Name())
			}
			if len(children) > 0 {
				continue
			}
			op.Log.Infof("Remove %s snapshot.", snap.Name())
			if err := snap.Delete(); err != nil {
				op.Log.WithError(err).Warnf("failed to remove snapshot %s", snap.Name())
			}
		}
		if snapshots, err = d.Snapshots(); err != nil {
			return fault.WrapRecoverable(err, "Can not list snapshots of domain %s", d.Name())
		}
	}

	if len(snapshots) > 0 {
		names := make([]string, 0, len(snapshots))
		for _, snap := range snapshots {
			names = append(names, snap.Name())
		}
		return fault.Recoverable("Still have several snapshots: %q.", names)
	}
	return nil
}
