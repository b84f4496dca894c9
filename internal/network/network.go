package network

import (
	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/template"
)

var networks = reconcile.New(reconcile.Kind[hypervisor.Network]{
	Name:         "network",
	Template:     template.KindNetwork,
	CreateFailed: "Failed to create a virtual network",
	Lookup: func(c hypervisor.Conn, _ params.Params, name string) (hypervisor.Network, error) {
		return c.LookupNetwork(name)
	},
	Create: func(c hypervisor.Conn, _ params.Params, xml string) (hypervisor.Network, error) {
		return c.CreateNetwork(xml)
	},
	Handle:  func(n hypervisor.Network) string { return n.Name() },
	XMLDesc: func(n hypervisor.Network) (string, error) { return n.XMLDesc() },
})

// Create starts the network from its rendered definition, or binds an
// external or already created one.
func Create(op *reconcile.Op) error {
	op.Log.Info("Creating new network.")
	return networks.WithConnection(op, func(c hypervisor.Conn) error {
		n, _, err := networks.Provision(op, c)
		if err != nil {
			return err
		}

		active, err := n.IsActive()
		if err != nil {
			op.Log.WithError(err).Warnf("can not read state of network %s", n.Name())
			return nil
		}
		if active {
			op.Log.Info("The virtual network is active")
		} else {
			op.Log.Info("The virtual network is not active")
		}
		return nil
	})
}

// Delete destroys an owned network.
func Delete(op *reconcile.Op) error {
	op.Log.Infof("Delete: %q", op.Instance.ResourceID())
	return networks.Teardown(op, func(_ hypervisor.Conn, n hypervisor.Network) error {
		if err := n.Destroy(); err != nil {
			return fault.WrapNonRecoverable(err, "Can not undefine network.")
		}
		return nil
	})
}

// SnapshotCreate stores the network description as a backup.
func SnapshotCreate(op *reconcile.Op) error {
	op.Log.Infof("Snapshot create: %q", op.Instance.ResourceID())
	return networks.SnapshotCreate(op)
}

// SnapshotApply compares a backup with the live network description.
func SnapshotApply(op *reconcile.Op) error {
	op.Log.Infof("Snapshot apply: %q", op.Instance.ResourceID())
	return networks.SnapshotApply(op)
}

// SnapshotDelete removes a network backup.
func SnapshotDelete(op *reconcile.Op) error {
	op.Log.Infof("Snapshot delete: %q", op.Instance.ResourceID())
	return networks.SnapshotDelete(op)
}
