package vm

import (
	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/template"
)

// SnapshotCreate backs the domain up. Incremental requests create a native
// snapshot named "{instance}-{snapshot}"; otherwise the XML description is
// written to the backup directory, or with full_dump the domain state is
// saved to a file and the domain restored from it.
func SnapshotCreate(op *reconcile.Op) error {
	op.Log.Info("backup")
	if err := op.Require("No servers for backup."); err != nil {
		return err
	}
	req := op.BackupRequest()
	key, err := req.Key()
	if err != nil {
		return err
	}
	p := op.Params()
	backups := op.Env().Backups

	return withDomain(op, func(c hypervisor.Conn, d hypervisor.Domain) error {
		if req.Incremental {
			return createNative(op, d, key, p)
		}

		if p.Bool("full_dump") {
			op.Log.Info("Used full raw dump")
			path, err := backups.PrepareRaw(req)
			if err != nil {
				return err
			}
			if err := d.Save(path); err != nil {
				return fault.WrapNonRecoverable(err, "Can not save guest domain.")
			}
			if err := c.RestoreDomain(path); err != nil {
				return fault.WrapRecoverable(err, "Can not restore guest domain from %s", path)
			}
		} else {
			xml, err := d.XMLDesc()
			if err != nil {
				return fault.WrapNonRecoverable(err, "Failed to describe the domain")
			}
			if err := backups.Create(op.Instance, req, xml); err != nil {
				return err
			}
		}
		op.Log.Infof("Backup %s is created.", key)
		return nil
	})
}

func createNative(op *reconcile.Op, d hypervisor.Domain, key string, p params.Params) error {
	vars := params.Merge(params.Params{
		"snapshot_name":        key,
		"snapshot_description": op.Kwargs.SnapshotType(),
	}, p)
	xml, err := op.Env().Renderer.Render(template.KindSnapshot, op.Source(), vars)
	if err != nil {
		return fault.WrapNonRecoverable(err, "Failed to render snapshot definition")
	}

	res := hypervisor.Classify(d.LookupSnapshot(key))
	switch res.Outcome {
	case hypervisor.Found:
		return fault.NonRecoverable("Snapshot %s already exists.", res.Handle.Name())
	case hypervisor.Failed:
		return fault.WrapNonRecoverable(res.Err, "Can not look up snapshot %s", key)
	}

	snap, err := d.CreateSnapshot(xml)
	if err != nil {
		return fault.WrapNonRecoverable(err, "Can not create snapshot %s", key)
	}
	op.Log.Infof("Snapshot name: %s", snap.Name())
	return nil
}

// SnapshotApply restores a backup: reverts to the native snapshot, compares
// the XML backup with the current description, or with full_dump replaces
// the domain with the saved state.
func SnapshotApply(op *reconcile.Op) error {
	op.Log.Info("restore")
	if err := op.Require("No servers for restore."); err != nil {
		return err
	}
	req := op.BackupRequest()
	key, err := req.Key()
	if err != nil {
		return err
	}
	p := op.Params()
	backups := op.Env().Backups

	return withDomain(op, func(c hypervisor.Conn, d hypervisor.Domain) error {
		if req.Incremental {
			snap, err := lookupSnapshot(d, key)
			if err != nil {
				return err
			}
			if err := snap.Revert(); err != nil {
				return fault.WrapNonRecoverable(err, "Can not revert to snapshot %s", key)
			}
			op.Log.Infof("Reverted to: %s", snap.Name())
			return nil
		}

		if p.Bool("full_dump") {
			op.Log.Info("Used full raw dump")
			path, err := backups.RequireRaw(req)
			if err != nil {
				return err
			}
			// the domain is undefined from here until the restore succeeds
			if err := forceDelete(op, d); err != nil {
				return fault.WrapRecoverable(err, "Can not remove domain %s before restore", d.Name())
			}
			if err := c.RestoreDomain(path); err != nil {
				return fault.WrapRecoverable(err, "Can not restore guest domain from %s", path)
			}
		} else {
			stored, err := backups.Load(op.Instance, req)
			if err != nil {
				return err
			}
			xml, err := d.XMLDesc()
			if err != nil {
				return fault.WrapNonRecoverable(err, "Failed to describe the domain")
			}
			reconcile.LogComparison(op, req, stored, xml)
		}
		op.Log.Infof("Restored to: %s", key)
		return nil
	})
}

// SnapshotDelete removes a backup. A native snapshot with children cannot
// be removed.
func SnapshotDelete(op *reconcile.Op) error {
	op.Log.Info("remove_backup")
	if err := op.Require("No servers for remove_backup."); err != nil {
		return err
	}
	req := op.BackupRequest()
	key, err := req.Key()
	if err != nil {
		return err
	}
	p := op.Params()
	backups := op.Env().Backups

	return withDomain(op, func(_ hypervisor.Conn, d hypervisor.Domain) error {
		switch {
		case req.Incremental:
			snap, err := lookupSnapshot(d, key)
			if err != nil {
				return err
			}
			children, err := snap.Children()
			if err != nil {
				return fault.WrapNonRecoverable(err, "Can not list children of snapshot %s", key)
			}
			if len(children) > 0 {
				return fault.NonRecoverable(
					"Sub snapshots %q found for %s. You should remove subsnaphots before remove current.",
					children, key)
			}
			if err := snap.Delete(); err != nil {
				return fault.WrapNonRecoverable(err, "Can not delete snapshot %s", key)
			}
		case p.Bool("full_dump"):
			op.Log.Info("Used full raw dump")
			if err := backups.RemoveRaw(req); err != nil {
				return err
			}
		default:
			if err := backups.Delete(op.Instance, req); err != nil {
				return err
			}
		}
		op.Log.Infof("Backup deleted: %s", key)
		return nil
	})
}

func lookupSnapshot(d hypervisor.Domain, key string) (hypervisor.Snapshot, error) {
	res := hypervisor.Classify(d.LookupSnapshot(key))
	switch res.Outcome {
	case hypervisor.Found:
		return res.Handle, nil
	case hypervisor.NotFound:
		return nil, fault.WrapNonRecoverable(res.Err, "No snapshots found with name: %s.", key)
	default:
		return nil, fault.WrapNonRecoverable(res.Err, "Can not look up snapshot %s", key)
	}
}
