package network

import (
	"errors"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/naming"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/state"
)

// Link polls the lease table of the network owned by op until it hands out
// an address to one of the MACs in the source domain's params.networks and
// records that address as the source's ip. op runs on the network side of
// the relationship.
func Link(op *reconcile.Op, source *state.Instance) error {
	vmID := source.ResourceID()
	op.Log.Infof("Link network: %q to VM: %q.", op.Instance.ResourceID(), vmID)

	return networks.WithConnection(op, func(c hypervisor.Conn) error {
		n, err := networks.Find(op, c)
		if err != nil {
			return err
		}

		attempts := op.Retry().Attempts
		err = reconcile.ConvergeEvery(op, op.Retry().LeaseInterval, func(i int) (bool, error) {
			op.Log.Infof("%s: Trying to get vm ip: %d/%d", vmID, i, attempts)
			leases, err := n.DHCPLeases()
			if err != nil {
				return false, fault.WrapRecoverable(err, "Can not read leases of network %s", n.Name())
			}
			if ip, ok := match(leases, source); ok {
				source.SetIP(ip)
				op.Log.Infof("%s: Found: %s", vmID, ip)
				return true, nil
			}
			return false, nil
		})
		if errors.Is(err, reconcile.ErrNotConverged) {
			return fault.Recoverable("No ip for now, try later")
		}
		return err
	})
}

// match returns the address of the first lease whose MAC belongs to one of
// the source's networks.
func match(leases []hypervisor.Lease, source *state.Instance) (string, bool) {
	nets := source.Params().List("networks")
	for _, lease := range leases {
		mac := naming.NormalizeMAC(lease.MAC)
		for _, n := range nets {
			if n.String("mac") != "" && naming.NormalizeMAC(n.String("mac")) == mac {
				return lease.IPAddr, true
			}
		}
	}
	return "", false
}

// Unlink forgets the ip recorded on the network side. It never fails.
func Unlink(op *reconcile.Op, source *state.Instance) error {
	op.Log.Infof("Unlink network: %q to VM: %q.", op.Instance.ResourceID(), source.ResourceID())
	op.Instance.SetIP("")
	return nil
}
