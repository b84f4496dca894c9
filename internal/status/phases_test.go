package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/hypervisor/hvtest"
	"github.com/jbweber/harrow/internal/state"
)

func TestFromPower(t *testing.T) {
	tests := []struct {
		state hypervisor.PowerState
		want  Phase
	}{
		{hypervisor.StateRunning, PhaseRunning},
		{hypervisor.StateBlocked, PhaseRunning},
		{hypervisor.StatePaused, PhaseSuspended},
		{hypervisor.StatePMSuspended, PhaseSuspended},
		{hypervisor.StateShutoff, PhaseShutoff},
		{hypervisor.StateCrashed, PhaseShutoff},
		{hypervisor.StateNoState, PhaseCreated},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, FromPower(tt.state))
		})
	}

	assert.Equal(t, PhaseRunning, FromPool(hypervisor.PoolRunning))
	assert.Equal(t, PhaseShutoff, FromPool(hypervisor.PoolInactive))
	assert.Equal(t, PhaseCreated, FromPool(hypervisor.PoolBuilding))
	assert.Equal(t, PhaseShutoff, FromActive(false))
}

func instance(id, kind, resource string) *state.Instance {
	inst := state.NewInstance(id)
	inst.SetKind(kind)
	if resource != "" {
		inst.Bind(resource, nil)
	}
	return inst
}

func TestLive(t *testing.T) {
	hv := hvtest.New()
	hv.AddDomain("vm_1", hypervisor.StatePaused)
	hv.AddPool("images", hypervisor.PoolRunning)
	hv.AddNetwork("private")
	ctx := context.Background()

	tests := []struct {
		name string
		inst *state.Instance
		want Phase
	}{
		{"unbound", instance("vm_2", "domain", ""), PhaseAbsent},
		{"domain", instance("vm_1", "domain", "vm_1"), PhaseSuspended},
		{"pool", instance("images_1", "pool", "images"), PhaseRunning},
		{"network", instance("private_1", "network", "private"), PhaseRunning},
		{"missing", instance("vm_3", "domain", "vm_3"), PhaseMissing},
		{"volume", instance("disk_1", "volume", "disk.qcow2"), PhaseCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Live(ctx, hv, "qemu:///system", tt.inst)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, hv.Opens, hv.Closes)
}

func TestLiveLookupFails(t *testing.T) {
	hv := hvtest.New()
	hv.Fail("domain.lookup", errors.New("rpc timeout"))

	_, err := Live(context.Background(), hv, "", instance("vm_1", "domain", "vm_1"))
	assert.Error(t, err)
	assert.True(t, IsActive(PhaseSuspended))
	assert.False(t, IsActive(PhaseAbsent))
}
