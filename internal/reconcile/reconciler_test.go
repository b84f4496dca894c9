package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/reconcile/reconciletest"
	"github.com/jbweber/harrow/internal/state"
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

func provision(t *testing.T, h *reconciletest.Harness, op *reconcile.Op) (bool, error) {
	t.Helper()
	var created bool
	err := reconcile.WithConnection(op, func(c hypervisor.Conn) error {
		_, fresh, err := networks.Provision(op, c)
		created = fresh
		return err
	})
	return created, err
}

func TestProvisionCreates(t *testing.T) {
	h := reconciletest.New()
	inst := state.NewInstance("net_1")
	node := reconciletest.Node("net", "network", params.Params{"ip": "10.0.0.1"})

	created, err := provision(t, h, h.Op("create", node, inst, nil))
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, "net_1", inst.ResourceID())
	assert.False(t, inst.External())
	assert.Equal(t, reconciletest.UUID, inst.Params().String("instance_uuid"))
	assert.Equal(t, "qemu:///system", inst.Auth())
	assert.NotNil(t, h.HV.Network("net_1"))
	assert.Equal(t, h.HV.Opens, h.HV.Closes)

	// re-entrant call looks the network up again
	created, err = provision(t, h, h.Op("create", node, inst, nil))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, h.HV.Count("network.create"))
	assert.True(t, h.Logged("Network is already alive, skip create."))
}

func TestProvisionExternal(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddNetwork("default")
	inst := state.NewInstance("net_1")
	kw := params.Kwargs{"resource_id": "default", "use_external_resource": true}

	_, err := provision(t, h, h.Op("create", reconciletest.Node("net", "network", nil), inst, kw))
	require.NoError(t, err)
	assert.Equal(t, "default", inst.ResourceID())
	assert.True(t, inst.External())
	assert.Equal(t, "net_1", inst.Params().String("name"))
	assert.False(t, h.HV.Called("network.create"))
}

func TestProvisionExternalMissing(t *testing.T) {
	h := reconciletest.New()
	inst := state.NewInstance("net_1")
	kw := params.Kwargs{"resource_id": "missing", "use_external_resource": true}

	_, err := provision(t, h, h.Op("create", reconciletest.Node("net", "network", nil), inst, kw))
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.ErrorIs(t, err, hypervisor.ErrNotFound)
	assert.Contains(t, err.Error(), "Failed to find the network")
	assert.Equal(t, 1, h.HV.Closes)
}

func TestProvisionCreateFails(t *testing.T) {
	h := reconciletest.New()
	h.HV.Fail("network.create", errors.New("boom"))
	inst := state.NewInstance("net_1")

	_, err := provision(t, h, h.Op("create", reconciletest.Node("net", "network", nil), inst, nil))
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Contains(t, err.Error(), "Failed to create a virtual network")
	assert.False(t, inst.HasResource())
	assert.Equal(t, h.HV.Opens, h.HV.Closes)
}

func TestWithConnectionOpenFails(t *testing.T) {
	h := reconciletest.New()
	h.HV.OpenErr = errors.New("connection refused")
	inst := state.NewInstance("net_1")

	called := false
	err := reconcile.WithConnection(h.Op("create", nil, inst, nil), func(hypervisor.Conn) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Contains(t, err.Error(), "Failed to open connection to the hypervisor")
}

func TestWithConnectionClosesOnError(t *testing.T) {
	h := reconciletest.New()
	inst := state.NewInstance("net_1")

	err := reconcile.WithConnection(h.Op("start", nil, inst, nil), func(hypervisor.Conn) error {
		return fault.Recoverable("later")
	})
	assert.True(t, fault.IsRecoverable(err))
	assert.Equal(t, 1, h.HV.Opens)
	assert.Equal(t, 1, h.HV.Closes)
}

func TestTeardown(t *testing.T) {
	destroy := func(_ hypervisor.Conn, n hypervisor.Network) error { return n.Destroy() }

	t.Run("no resource", func(t *testing.T) {
		h := reconciletest.New()
		err := networks.Teardown(h.Op("delete", nil, state.NewInstance("net_1"), nil), destroy)
		assert.NoError(t, err)
		assert.Zero(t, h.HV.Opens)
		assert.True(t, h.Logged("No network for delete"))
	})

	t.Run("external", func(t *testing.T) {
		h := reconciletest.New()
		h.HV.AddNetwork("default")
		inst := state.NewInstance("net_1")
		inst.SetResourceID("default")
		inst.SetExternal(true)

		require.NoError(t, networks.Teardown(h.Op("delete", nil, inst, nil), destroy))
		assert.False(t, h.HV.Called("network.destroy"))
		assert.NotNil(t, h.HV.Network("default"))
		assert.Equal(t, "default", inst.ResourceID())
	})

	t.Run("owned", func(t *testing.T) {
		h := reconciletest.New()
		h.HV.AddNetwork("private")
		inst := state.NewInstance("net_1")
		inst.SetResourceID("private")
		inst.PutBackup("net_1-a", "<network/>")

		require.NoError(t, networks.Teardown(h.Op("delete", nil, inst, nil), destroy))
		assert.Nil(t, h.HV.Network("private"))
		assert.False(t, inst.HasResource())
		assert.Zero(t, inst.BackupCount())
	})

	t.Run("drift", func(t *testing.T) {
		h := reconciletest.New()
		inst := state.NewInstance("net_1")
		inst.SetResourceID("gone")

		err := networks.Teardown(h.Op("delete", nil, inst, nil), destroy)
		assert.True(t, fault.IsNonRecoverable(err))
		assert.Equal(t, "gone", inst.ResourceID())
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, incremental := range []bool{true, false} {
		t.Run(map[bool]string{true: "incremental", false: "persistent"}[incremental], func(t *testing.T) {
			h := reconciletest.New()
			n := h.HV.AddNetwork("private")
			inst := state.NewInstance("net_1")
			inst.SetResourceID("private")
			node := reconciletest.Node("net", "network", nil)
			node.BackupDir = "/backups"
			kw := params.Kwargs{"snapshot_name": "nightly", "snapshot_incremental": incremental}

			require.NoError(t, networks.SnapshotCreate(h.Op("snapshot_create", node, inst, kw)))

			err := networks.SnapshotCreate(h.Op("snapshot_create", node, inst, kw))
			require.Error(t, err)
			assert.True(t, fault.IsNonRecoverable(err))
			assert.Contains(t, err.Error(), "already exists")

			require.NoError(t, networks.SnapshotApply(h.Op("snapshot_apply", node, inst, kw)))
			assert.True(t, h.Logged("Already used such configuration: net_1-nightly"))

			n.SetXML("<network><name>private</name><bridge name='virbr9'/></network>")
			require.NoError(t, networks.SnapshotApply(h.Op("snapshot_apply", node, inst, kw)))
			assert.True(t, h.Logged("We have different configs"))

			require.NoError(t, networks.SnapshotDelete(h.Op("snapshot_delete", node, inst, kw)))
			assert.True(t, h.Logged("Backup deleted: net_1-nightly"))

			err = networks.SnapshotDelete(h.Op("snapshot_delete", node, inst, kw))
			assert.True(t, fault.IsNonRecoverable(err))
		})
	}
}

func TestSnapshotRequiresResource(t *testing.T) {
	h := reconciletest.New()
	kw := params.Kwargs{"snapshot_name": "nightly"}

	err := networks.SnapshotCreate(h.Op("snapshot_create", nil, state.NewInstance("net_1"), kw))
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Contains(t, err.Error(), "No network for backup")
	assert.Zero(t, h.HV.Opens)
}

func TestConverge(t *testing.T) {
	h := reconciletest.New()
	op := h.Op("start", reconciletest.Node("vm", "domain", nil), state.NewInstance("vm_1"), nil)

	calls := 0
	err := reconcile.Converge(op, func(int) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, h.Sleeps())

	calls = 0
	err = reconcile.Converge(op, func(int) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, reconcile.ErrNotConverged)
	assert.Equal(t, 10, calls)

	boom := errors.New("boom")
	err = reconcile.Converge(op, func(int) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, reconcile.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, reconcile.Sleep(context.Background(), time.Millisecond))
}
