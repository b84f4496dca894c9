package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile/reconciletest"
	"github.com/jbweber/harrow/internal/state"
)

func poolNode(props params.Params) *state.Node {
	return reconciletest.Node("images", "pool", props)
}

func TestPoolLifecycle(t *testing.T) {
	h := reconciletest.New()
	inst := state.NewInstance("images")
	n := poolNode(nil)

	require.NoError(t, CreatePool(h.Op("create", n, inst, nil)))
	assert.Equal(t, "images", inst.ResourceID())
	assert.Equal(t, "/var/lib/libvirt/images/images", inst.Params().String("path"))
	pool := h.HV.Pool("images")
	require.NotNil(t, pool)

	require.NoError(t, ConfigurePool(h.Op("configure", n, inst, nil)))
	assert.Equal(t, 1, h.HV.Count("pool.build"))

	require.NoError(t, StartPool(h.Op("start", n, inst, nil)))
	assert.Equal(t, hypervisor.PoolRunning, pool.PoolState())
	assert.True(t, h.Logged("Looks as active."))

	// a running pool is not built again
	require.NoError(t, ConfigurePool(h.Op("configure", n, inst, nil)))
	assert.Equal(t, 1, h.HV.Count("pool.build"))

	require.NoError(t, StopPool(h.Op("stop", n, inst, nil)))
	assert.Equal(t, hypervisor.PoolInactive, pool.PoolState())
	assert.False(t, h.HV.Called("pool.delete"))

	require.NoError(t, DeletePool(h.Op("delete", n, inst, nil)))
	assert.Nil(t, h.HV.Pool("images"))
	assert.False(t, inst.HasResource())
	assert.Equal(t, h.HV.Opens, h.HV.Closes)
}

func TestPoolRequiresResource(t *testing.T) {
	h := reconciletest.New()

	err := ConfigurePool(h.Op("configure", poolNode(nil), state.NewInstance("images"), nil))
	require.Error(t, err)
	assert.Equal(t, "No pool for configure", err.Error())

	err = StartPool(h.Op("start", poolNode(nil), state.NewInstance("images"), nil))
	require.Error(t, err)
	assert.Equal(t, "No pool for start", err.Error())

	require.NoError(t, StopPool(h.Op("stop", poolNode(nil), state.NewInstance("images"), nil)))
	assert.True(t, h.Logged("No pools for stop"))
	require.NoError(t, DeletePool(h.Op("delete", poolNode(nil), state.NewInstance("images"), nil)))
	assert.True(t, h.Logged("No pool for delete"))
	assert.Zero(t, h.HV.Opens)
}

func TestPoolStartStuck(t *testing.T) {
	h := reconciletest.New()
	pool := h.HV.AddPool("images", hypervisor.PoolInactive)
	pool.Sticky = true
	inst := state.NewInstance("images")
	inst.Bind("images", nil)

	err := StartPool(h.Op("start", poolNode(nil), inst, nil))
	require.Error(t, err)
	assert.True(t, fault.IsRecoverable(err))
	assert.Equal(t, "Can not start pool.", err.Error())
	assert.Equal(t, 10, h.HV.Count("pool.create"))
}

func TestPoolStopDeletesActiveTarget(t *testing.T) {
	h := reconciletest.New()
	pool := h.HV.AddPool("images", hypervisor.PoolRunning)
	pool.Sticky = true
	inst := state.NewInstance("images")
	inst.Bind("images", nil)

	require.NoError(t, StopPool(h.Op("stop", poolNode(nil), inst, nil)))
	assert.Equal(t, 10, h.HV.Count("pool.destroy"))
	assert.Equal(t, 1, h.HV.Count("pool.delete"))

	h.HV.Fail("pool.delete", errors.New("busy"))
	err := StopPool(h.Op("stop", poolNode(nil), inst, nil))
	require.Error(t, err)
	assert.True(t, fault.IsRecoverable(err))
	assert.Contains(t, err.Error(), "Can not delete guest pool.")
}

func TestPoolConfigureBuildFails(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddPool("images", hypervisor.PoolInactive)
	h.HV.Fail("pool.build", errors.New("permission denied"))
	inst := state.NewInstance("images")
	inst.Bind("images", nil)

	err := ConfigurePool(h.Op("configure", poolNode(nil), inst, nil))
	require.Error(t, err)
	assert.True(t, fault.IsRecoverable(err))
	assert.Contains(t, err.Error(), "Can not build guest pool.")
}

func TestPoolExternal(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddPool("default", hypervisor.PoolRunning)
	inst := state.NewInstance("images")
	kw := params.Kwargs{"resource_id": "default", "use_external_resource": true}

	require.NoError(t, CreatePool(h.Op("create", poolNode(nil), inst, kw)))
	assert.True(t, inst.External())
	for _, fn := range []func() error{
		func() error { return ConfigurePool(h.Op("configure", poolNode(nil), inst, nil)) },
		func() error { return StartPool(h.Op("start", poolNode(nil), inst, nil)) },
		func() error { return StopPool(h.Op("stop", poolNode(nil), inst, nil)) },
		func() error { return DeletePool(h.Op("delete", poolNode(nil), inst, nil)) },
	} {
		require.NoError(t, fn())
	}
	assert.False(t, h.HV.Called("pool.define"))
	assert.False(t, h.HV.Called("pool.destroy"))
	assert.False(t, h.HV.Called("pool.undefine"))
	assert.NotNil(t, h.HV.Pool("default"))
}

func TestPoolSnapshots(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddPool("images", hypervisor.PoolRunning)
	inst := state.NewInstance("images")
	inst.Bind("images", nil)
	n := poolNode(nil)
	n.BackupDir = "/backups"
	kw := params.Kwargs{"snapshot_name": "nightly"}

	require.NoError(t, SnapshotCreatePool(h.Op("snapshot_create", n, inst, kw)))
	require.NoError(t, SnapshotApplyPool(h.Op("snapshot_apply", n, inst, kw)))
	assert.True(t, h.Logged("Already used such configuration: images-nightly"))
	require.NoError(t, SnapshotDeletePool(h.Op("snapshot_delete", n, inst, kw)))

	err := SnapshotApplyPool(h.Op("snapshot_apply", n, inst, kw))
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
}
