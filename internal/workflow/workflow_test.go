package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/harrow/api/v1alpha1"
	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/loader"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/plugin"
	"github.com/jbweber/harrow/internal/reconcile/reconciletest"
	"github.com/jbweber/harrow/internal/state"
	"github.com/jbweber/harrow/internal/workflow"
)

func setup(t *testing.T) (*reconciletest.Harness, *workflow.Runner, *state.FileStore) {
	t.Helper()
	h := reconciletest.New()
	store := state.NewFileStore(t.TempDir())
	r := &workflow.Runner{
		Plugin: plugin.New(h.Env),
		Store:  store,
		Log:    logrus.NewEntry(logrus.New()),
	}
	return h, r, store
}

func blueprint(nodes ...v1alpha1.NodeSpec) *v1alpha1.Blueprint {
	b := v1alpha1.NewBlueprint("lab")
	b.Spec.Nodes = nodes
	b.Normalize()
	return b
}

func defaults() loader.Defaults {
	return loader.Defaults{LibvirtAuth: "qemu:///system"}
}

func TestNewPlan(t *testing.T) {
	b := blueprint(
		v1alpha1.NodeSpec{Name: "vm", Type: v1alpha1.NodeTypeDomain, ConnectedTo: []string{"private"}},
		v1alpha1.NodeSpec{Name: "images", Type: v1alpha1.NodeTypePool, Instances: 2},
		v1alpha1.NodeSpec{Name: "private", Type: v1alpha1.NodeTypeNetwork},
	)
	p := workflow.NewPlan(b, defaults())

	require.Len(t, p.Steps, 3)
	assert.Equal(t, "lab", p.Name)
	assert.Equal(t, []string{"images_1", "images_2"}, p.Step("images").Instances)
	assert.Nil(t, p.Step("router"))
}

func TestKwargs(t *testing.T) {
	s := &workflow.Step{Inputs: map[string]map[string]any{
		"create": {"template_content": "<pool/>", "name": "a"},
	}}

	kw := s.Kwargs("create", params.Kwargs{"name": "b"})
	assert.Equal(t, "<pool/>", kw.String("template_content"))
	assert.Equal(t, "b", kw.String("name"))
	assert.Empty(t, s.Kwargs("start", nil))
}

func TestInstallUninstallPools(t *testing.T) {
	h, r, store := setup(t)
	p := workflow.NewPlan(blueprint(
		v1alpha1.NodeSpec{Name: "images", Type: v1alpha1.NodeTypePool, Instances: 2},
	), defaults())

	require.NoError(t, r.Install(context.Background(), p))
	for _, id := range []string{"images_1", "images_2"} {
		pool := h.HV.Pool(id)
		require.NotNil(t, pool, id)
		assert.Equal(t, hypervisor.PoolRunning, pool.PoolState())

		inst, err := store.Load(id)
		require.NoError(t, err)
		assert.Equal(t, id, inst.ResourceID())
		assert.Equal(t, plugin.KindPool, inst.Kind())
	}
	assert.Equal(t, 2, h.HV.Count("pool.build"))

	require.NoError(t, r.Uninstall(context.Background(), p))
	assert.Nil(t, h.HV.Pool("images_1"))
	assert.Nil(t, h.HV.Pool("images_2"))

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInstallStopsAfterFailedGroup(t *testing.T) {
	h, r, store := setup(t)
	h.HV.Fail("pool.define", errors.New("boom"))
	p := workflow.NewPlan(blueprint(
		v1alpha1.NodeSpec{Name: "images", Type: v1alpha1.NodeTypePool},
		v1alpha1.NodeSpec{Name: "private", Type: v1alpha1.NodeTypeNetwork},
	), defaults())

	err := r.Install(context.Background(), p)
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Contains(t, err.Error(), "create images_1")
	assert.False(t, h.HV.Called("network.create"))

	inst, err := store.Load("images_1")
	require.NoError(t, err)
	assert.False(t, inst.HasResource())
}

func TestInstallLinkWithoutLeaseIsRecoverable(t *testing.T) {
	h, r, store := setup(t)
	p := workflow.NewPlan(blueprint(
		v1alpha1.NodeSpec{Name: "private", Type: v1alpha1.NodeTypeNetwork},
		v1alpha1.NodeSpec{
			Name:        "vm",
			Type:        v1alpha1.NodeTypeDomain,
			Properties:  map[string]any{"memory_size": 512},
			ConnectedTo: []string{"private"},
		},
	), defaults())

	err := r.Install(context.Background(), p)
	require.Error(t, err)
	assert.True(t, fault.IsRecoverable(err))
	assert.Contains(t, err.Error(), "link vm_1 to private_1")
	assert.NotNil(t, h.HV.Network("private_1"))

	vm, err := store.Load("vm_1")
	require.NoError(t, err)
	assert.Equal(t, "vm_1", vm.ResourceID())
	assert.Empty(t, vm.IP())
}

func TestRunUnsupported(t *testing.T) {
	_, r, _ := setup(t)
	p := workflow.NewPlan(blueprint(
		v1alpha1.NodeSpec{Name: "seed", Type: v1alpha1.NodeTypeISO},
	), defaults())

	err := r.Run(context.Background(), p.Step("seed"), "seed_1", "reboot", nil)
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
}
