package plugin_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/metrics"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/plugin"
	"github.com/jbweber/harrow/internal/reconcile/reconciletest"
	"github.com/jbweber/harrow/internal/state"
)

func TestSupports(t *testing.T) {
	tests := []struct {
		kind, operation string
		want            bool
	}{
		{plugin.KindDomain, "reboot", true},
		{plugin.KindDomain, "perfomance", true},
		{plugin.KindDomain, "link", false},
		{plugin.KindNetwork, "link", true},
		{plugin.KindNetwork, "start", false},
		{plugin.KindPool, "configure", true},
		{plugin.KindVolume, "configure", false},
		{plugin.KindISO, "create", true},
		{plugin.KindISO, "delete", true},
		{plugin.KindISO, "stop", false},
		{"router", "create", false},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.operation, func(t *testing.T) {
			assert.Equal(t, tt.want, plugin.Supports(tt.kind, tt.operation))
		})
	}

	assert.Equal(t, []string{"create", "delete"}, plugin.Operations(plugin.KindISO))
	assert.Contains(t, plugin.Operations(plugin.KindNetwork), "unlink")
}

func TestRunRecordsMetrics(t *testing.T) {
	h := reconciletest.New()
	h.Env.Metrics = metrics.New()
	p := plugin.New(h.Env)

	n := reconciletest.Node("vm", plugin.KindDomain, params.Params{"memory_size": 512})
	inst := state.NewInstance("vm_1")

	require.NoError(t, p.Run(context.Background(), "create", n, inst, nil))
	require.NoError(t, p.Run(context.Background(), "configure", n, inst, nil))
	assert.Equal(t, plugin.KindDomain, inst.Kind())
	assert.Equal(t, "vm_1", inst.ResourceID())

	err := p.Run(context.Background(), "stop", n, state.NewInstance("vm_2"), nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(h.Env.Metrics.Gatherer(), "harrow_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunAlias(t *testing.T) {
	h := reconciletest.New()
	d := h.HV.AddDomain("vm_1", hypervisor.StateRunning)
	d.CPUTimes = []uint64{0, 1e9}
	inst := state.NewInstance("vm_1")
	inst.Bind("vm_1", nil)

	n := reconciletest.Node("vm", plugin.KindDomain, nil)
	require.NoError(t, plugin.New(h.Env).Run(context.Background(), "perfomance", n, inst, nil))
	_, ok := inst.Stat()
	assert.True(t, ok)
}

func TestRunUnsupported(t *testing.T) {
	h := reconciletest.New()
	p := plugin.New(h.Env)

	err := p.Run(context.Background(), "reboot", reconciletest.Node("seed", plugin.KindISO, nil), state.NewInstance("seed_1"), nil)
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Equal(t, "Operation reboot is not supported for iso", err.Error())

	err = p.RunLink(context.Background(), "link", reconciletest.Node("vm", plugin.KindDomain, nil), state.NewInstance("vm_1"), state.NewInstance("x"), nil)
	assert.True(t, fault.IsNonRecoverable(err))
}

func TestRunLink(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddNetwork("private").SetLeases(hypervisor.Lease{MAC: "52:54:00:aa:bb:cc", IPAddr: "10.0.0.9"})

	target := state.NewInstance("private_1")
	target.Bind("private", nil)
	source := state.NewInstance("vm_1")
	source.Bind("vm_1", params.Params{"networks": []any{map[string]any{"mac": "52:54:00:aa:bb:cc"}}})

	n := reconciletest.Node("private", plugin.KindNetwork, nil)
	p := plugin.New(h.Env)
	require.NoError(t, p.RunLink(context.Background(), "link", n, target, source, nil))
	assert.Equal(t, "10.0.0.9", source.IP())

	target.SetIP("10.0.0.1")
	require.NoError(t, p.RunLink(context.Background(), "unlink", n, target, source, nil))
	assert.Empty(t, target.IP())
}

func TestRecoverableIsLogged(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddNetwork("private")
	target := state.NewInstance("private_1")
	target.Bind("private", nil)
	source := state.NewInstance("vm_1")

	err := plugin.New(h.Env).RunLink(context.Background(), "link", reconciletest.Node("private", plugin.KindNetwork, nil), target, source, nil)
	require.Error(t, err)
	assert.True(t, fault.IsRecoverable(err))
	assert.True(t, h.Logged("Operation failed, retry later"))
}
