package storage

import (
	"io"

	"github.com/docker/go-units"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/template"
)

var volumes = reconcile.New(reconcile.Kind[hypervisor.Volume]{
	Name:         "volume",
	Template:     template.KindVolume,
	CreateFailed: "Failed to create a virtual volume",
	Lookup: func(c hypervisor.Conn, p params.Params, name string) (hypervisor.Volume, error) {
		pool, err := c.LookupPool(p.String("pool"))
		if err != nil {
			return nil, err
		}
		return pool.LookupVolume(name)
	},
	Create: func(c hypervisor.Conn, p params.Params, xml string) (hypervisor.Volume, error) {
		pool, err := c.LookupPool(p.String("pool"))
		if err != nil {
			return nil, err
		}
		return pool.CreateVolume(xml)
	},
	Handle:  func(v hypervisor.Volume) string { return v.Name() },
	XMLDesc: func(v hypervisor.Volume) (string, error) { return v.XMLDesc() },
	Bound: func(v hypervisor.Volume, p params.Params) error {
		path, err := v.Path()
		if err != nil {
			return fault.WrapNonRecoverable(err, "Failed to get path of the volume %s", v.Name())
		}
		p["path"] = path
		return nil
	},
})

func withVolume(op *reconcile.Op, fn func(v hypervisor.Volume) error) error {
	return volumes.WithConnection(op, func(c hypervisor.Conn) error {
		v, err := volumes.Find(op, c)
		if err != nil {
			return err
		}
		return fn(v)
	})
}

// CreateVolume creates the volume inside params.pool and records its path.
// With params.url the image is probed first and capacity and allocation are
// set to its size rounded up to whole MiB.
func CreateVolume(op *reconcile.Op) error {
	op.Log.Info("Creating new volume.")
	return volumes.WithConnection(op, func(c hypervisor.Conn) error {
		p := op.Params()
		if _, err := c.LookupPool(p.String("pool")); err != nil {
			return fault.WrapNonRecoverable(err, "Failed to find the pool")
		}

		if url := p.String("url"); url != "" && !op.Instance.External() && !op.Instance.HasResource() {
			size, err := probe(op.Ctx, url)
			if err != nil {
				return err
			}
			mib := (size + units.MiB - 1) / units.MiB
			op.Log.Infof("Image %s is %s", url, units.BytesSize(float64(size)))
			p["capacity"] = mib
			p["allocation"] = mib
		}

		_, _, err := volumes.Provision(op, c)
		return err
	})
}

// StartVolume fills an owned volume: zeros over allocation MiB when
// zero_wipe is set, then the image at params.url.
func StartVolume(op *reconcile.Op) error {
	op.Log.Info("start")
	if op.Skip("No volumes for zero") {
		return nil
	}
	p := op.Params()

	return withVolume(op, func(v hypervisor.Volume) error {
		if p.Truthy("zero_wipe") && p.Truthy("allocation") {
			n := p.Uint64("allocation") * units.MiB
			op.Log.Infof("Zero fill: %s", units.BytesSize(float64(n)))
			if err := v.Upload(op.Ctx, io.LimitReader(zeros{}, int64(n)), 0, n); err != nil {
				return fault.WrapRecoverable(err, "Can not fill volume %s with zeros", v.Name())
			}
		}

		if url := p.String("url"); url != "" {
			return download(op, v, url, p.String("format"))
		}
		return nil
	})
}

// StopVolume wipes the volume, retrying on failure. Wipe failures are only
// logged.
func StopVolume(op *reconcile.Op) error {
	op.Log.Info("stop")
	if op.Skip("No volumes for stop") {
		return nil
	}
	return withVolume(op, func(v hypervisor.Volume) error {
		attempts := op.Retry().Attempts
		err := reconcile.Converge(op, func(i int) (bool, error) {
			op.Log.Infof("Trying to wipe volume %d/%d", i, attempts)
			if err := v.Wipe(); err != nil {
				op.Log.WithError(err).Info("Failed to wipe the volume")
				return false, nil
			}
			return true, nil
		})
		if err != nil {
			op.Log.WithError(err).Warnf("Volume %s was not wiped", v.Name())
		}
		return nil
	})
}

// DeleteVolume deletes an owned volume and forgets its params.
func DeleteVolume(op *reconcile.Op) error {
	op.Log.Infof("Delete: %q", op.Instance.ResourceID())
	return volumes.Teardown(op, func(_ hypervisor.Conn, v hypervisor.Volume) error {
		if err := v.Delete(); err != nil {
			return fault.WrapNonRecoverable(err, "Can not undefine volume.")
		}
		op.Instance.ClearParams()
		return nil
	})
}

func SnapshotCreateVolume(op *reconcile.Op) error { return volumes.SnapshotCreate(op) }

func SnapshotApplyVolume(op *reconcile.Op) error { return volumes.SnapshotApply(op) }

func SnapshotDeleteVolume(op *reconcile.Op) error { return volumes.SnapshotDelete(op) }

// zeros is an endless stream of zero bytes.
type zeros struct{}

func (zeros) Read(b []byte) (int, error) {
	clear(b)
	return len(b), nil
}
