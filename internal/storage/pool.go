package storage

import (
	"errors"

	"github.com/docker/go-units"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/naming"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/template"
)

var pools = reconcile.New(reconcile.Kind[hypervisor.Pool]{
	Name:         "pool",
	Template:     template.KindPool,
	CreateFailed: "Failed to create a virtual pool",
	Lookup: func(c hypervisor.Conn, _ params.Params, name string) (hypervisor.Pool, error) {
		return c.LookupPool(name)
	},
	Create: func(c hypervisor.Conn, _ params.Params, xml string) (hypervisor.Pool, error) {
		return c.DefinePool(xml)
	},
	Handle:  func(p hypervisor.Pool) string { return p.Name() },
	XMLDesc: func(p hypervisor.Pool) (string, error) { return p.XMLDesc() },
})

// withPool runs fn with the bound pool unless the instance is external.
func withPool(op *reconcile.Op, fn func(p hypervisor.Pool) error) error {
	if op.Instance.External() {
		op.Log.Info("External resource, skip")
		return nil
	}
	return pools.WithConnection(op, func(c hypervisor.Conn) error {
		p, err := pools.Find(op, c)
		if err != nil {
			return err
		}
		return fn(p)
	})
}

func poolInfo(op *reconcile.Op, p hypervisor.Pool) (hypervisor.PoolInfo, error) {
	info, err := p.Info()
	if err != nil {
		return info, fault.WrapNonRecoverable(err, "Failed to get info of the pool %s", p.Name())
	}
	op.Log.Infof("State: %s, Capacity: %s, Allocation: %s, Available: %s",
		info.State, units.BytesSize(float64(info.Capacity)),
		units.BytesSize(float64(info.Allocation)), units.BytesSize(float64(info.Available)))
	return info, nil
}

// CreatePool defines the pool. The target path defaults to
// /var/lib/libvirt/images/{name} and is recorded in params.
func CreatePool(op *reconcile.Op) error {
	op.Log.Info("Creating new pool.")
	return pools.WithConnection(op, func(c hypervisor.Conn) error {
		p := op.Params()
		if !p.Truthy("path") {
			p["path"] = naming.PoolPath(p.String("name"))
		}
		_, _, err := pools.Provision(op, c)
		return err
	})
}

// ConfigurePool builds the pool target when the pool is inactive.
func ConfigurePool(op *reconcile.Op) error {
	op.Log.Info("configure")
	if err := op.Require("No pool for configure"); err != nil {
		return err
	}
	return withPool(op, func(p hypervisor.Pool) error {
		info, err := poolInfo(op, p)
		if err != nil {
			return err
		}
		if info.State == hypervisor.PoolInactive {
			if err := p.Build(); err != nil {
				return fault.WrapRecoverable(err, "Can not build guest pool.")
			}
		}
		return nil
	})
}

// StartPool activates the pool.
func StartPool(op *reconcile.Op) error {
	op.Log.Info("start")
	if err := op.Require("No pool for start"); err != nil {
		return err
	}
	return withPool(op, func(p hypervisor.Pool) error {
		attempts := op.Retry().Attempts
		err := reconcile.Converge(op, func(i int) (bool, error) {
			active, err := p.IsActive()
			if err != nil {
				return false, fault.WrapRecoverable(err, "Can not start pool.")
			}
			if active {
				op.Log.Info("Looks as active.")
				return true, nil
			}
			op.Log.Infof("Trying to start pool %d/%d", i, attempts)
			if err := p.Create(); err != nil {
				return false, fault.WrapRecoverable(err, "Can not start pool.")
			}
			return false, nil
		})
		if errors.Is(err, reconcile.ErrNotConverged) {
			return fault.Recoverable("Can not start pool.")
		}
		return err
	})
}

// StopPool deactivates the pool and deletes its target if it is still not
// inactive afterwards.
func StopPool(op *reconcile.Op) error {
	op.Log.Info("stop")
	if !op.Instance.HasResource() {
		op.Log.Info("No pools for stop")
		return nil
	}
	return withPool(op, func(p hypervisor.Pool) error {
		attempts := op.Retry().Attempts
		err := reconcile.Converge(op, func(i int) (bool, error) {
			active, err := p.IsActive()
			if err != nil {
				return false, fault.WrapNonRecoverable(err, "Can not destroy pool.")
			}
			if !active {
				op.Log.Info("Looks as not active.")
				return true, nil
			}
			op.Log.Infof("Trying to stop pool %d/%d", i, attempts)
			if err := p.Destroy(); err != nil {
				return false, fault.WrapNonRecoverable(err, "Can not destroy pool.")
			}
			return false, nil
		})
		if errors.Is(err, reconcile.ErrNotConverged) {
			op.Log.Warnf("Pool %s is still active after %d attempts", p.Name(), attempts)
		} else if err != nil {
			return err
		}

		info, err := poolInfo(op, p)
		if err != nil {
			return err
		}
		if info.State != hypervisor.PoolInactive {
			if err := p.Delete(); err != nil {
				return fault.WrapRecoverable(err, "Can not delete guest pool.")
			}
		}
		return nil
	})
}

// DeletePool undefines an owned pool.
func DeletePool(op *reconcile.Op) error {
	op.Log.Infof("Delete: %q", op.Instance.ResourceID())
	return pools.Teardown(op, func(_ hypervisor.Conn, p hypervisor.Pool) error {
		if err := p.Undefine(); err != nil {
			return fault.WrapNonRecoverable(err, "Can not undefine pool.")
		}
		return nil
	})
}

func SnapshotCreatePool(op *reconcile.Op) error { return pools.SnapshotCreate(op) }

func SnapshotApplyPool(op *reconcile.Op) error { return pools.SnapshotApply(op) }

func SnapshotDeletePool(op *reconcile.Op) error { return pools.SnapshotDelete(op) }
