package storage

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/docker/go-units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/hypervisor/hvtest"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile/reconciletest"
	"github.com/jbweber/harrow/internal/state"
)

func volumeNode(props params.Params) *state.Node {
	p := params.Params{"pool": "images"}
	for k, v := range props {
		p[k] = v
	}
	return reconciletest.Node("disk", "volume", p)
}

func image(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0x51, 0x46, 0x49, 0xfb})
	for i := 4; i < size; i++ {
		data[i] = byte(i % 251)
	}
	return data
}

func serveImage(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "image.qcow2", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// boundVolume returns an instance owning volume vol_1 in pool images.
func boundVolume(h *reconciletest.Harness, props params.Params) (*state.Instance, *hvtest.Volume, *state.Node) {
	pool := h.HV.AddPool("images", hypervisor.PoolRunning)
	v := pool.AddVolume("vol_1")
	inst := state.NewInstance("vol_1")
	inst.Bind("vol_1", nil)
	return inst, v, volumeNode(props)
}

func TestCreateVolume(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddPool("images", hypervisor.PoolRunning)
	inst := state.NewInstance("vol_1")

	require.NoError(t, CreateVolume(h.Op("create", volumeNode(params.Params{"capacity": 1024}), inst, nil)))
	assert.Equal(t, "vol_1", inst.ResourceID())
	assert.Equal(t, "/var/lib/libvirt/images/images/vol_1", inst.Params().String("path"))
	assert.NotNil(t, h.HV.Pool("images").Volume("vol_1"))
	assert.True(t, h.Logged("Volume vol_1 has created."))
}

func TestCreateVolumeMissingPool(t *testing.T) {
	h := reconciletest.New()
	inst := state.NewInstance("vol_1")

	err := CreateVolume(h.Op("create", volumeNode(nil), inst, nil))
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Contains(t, err.Error(), "Failed to find the pool")
}

func TestCreateVolumeFromURL(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddPool("images", hypervisor.PoolRunning)
	srv := serveImage(t, image(2*units.MiB+10))
	inst := state.NewInstance("vol_1")

	require.NoError(t, CreateVolume(h.Op("create", volumeNode(params.Params{"url": srv.URL}), inst, nil)))
	assert.Equal(t, uint64(3), inst.Params().Uint64("capacity"))
	assert.Equal(t, uint64(3), inst.Params().Uint64("allocation"))
}

func TestCreateVolumeURLWithoutRanges(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddPool("images", hypervisor.PoolRunning)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(1024))
	}))
	defer srv.Close()
	inst := state.NewInstance("vol_1")

	err := CreateVolume(h.Op("create", volumeNode(params.Params{"url": srv.URL}), inst, nil))
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Equal(t, "Failed to download volume.", err.Error())
	assert.False(t, h.HV.Called("volume.create"))
}

func TestCreateVolumeExternal(t *testing.T) {
	h := reconciletest.New()
	h.HV.AddPool("images", hypervisor.PoolRunning).AddVolume("base.qcow2")
	inst := state.NewInstance("vol_1")
	kw := params.Kwargs{"resource_id": "base.qcow2", "use_external_resource": true}

	require.NoError(t, CreateVolume(h.Op("create", volumeNode(params.Params{"url": "http://invalid.example"}), inst, kw)))
	assert.True(t, inst.External())
	assert.Equal(t, "/var/lib/libvirt/images/images/base.qcow2", inst.Params().String("path"))

	require.NoError(t, StartVolume(h.Op("start", volumeNode(nil), inst, nil)))
	require.NoError(t, StopVolume(h.Op("stop", volumeNode(nil), inst, nil)))
	require.NoError(t, DeleteVolume(h.Op("delete", volumeNode(nil), inst, nil)))
	assert.False(t, h.HV.Called("volume.wipe"))
	assert.NotNil(t, h.HV.Pool("images").Volume("base.qcow2"))
}

func TestStartVolumeDownloads(t *testing.T) {
	old := downloadStep
	downloadStep = units.MiB
	t.Cleanup(func() { downloadStep = old })

	h := reconciletest.New()
	data := image(2*units.MiB + 10)
	srv := serveImage(t, data)
	inst, v, n := boundVolume(h, params.Params{"url": srv.URL})

	require.NoError(t, StartVolume(h.Op("start", n, inst, nil)))
	assert.Equal(t, 3, h.HV.Count("volume.upload"))
	assert.True(t, bytes.Equal(data, v.Data))
	assert.True(t, h.Logged("Range: 2097152..2097161/2097162: 100%"))
}

func TestStartVolumeZeroWipe(t *testing.T) {
	h := reconciletest.New()
	inst, v, n := boundVolume(h, params.Params{"zero_wipe": true, "allocation": 2})
	v.Data = []byte{1, 2, 3}

	require.NoError(t, StartVolume(h.Op("start", n, inst, nil)))
	assert.Len(t, v.Data, 2*units.MiB)
	assert.Equal(t, []byte{0, 0, 0}, v.Data[:3])
}

func TestStartVolumeWithoutResource(t *testing.T) {
	h := reconciletest.New()
	require.NoError(t, StartVolume(h.Op("start", volumeNode(nil), state.NewInstance("vol_1"), nil)))
	assert.True(t, h.Logged("No volumes for zero"))
}

func TestStopVolumeRetriesWipe(t *testing.T) {
	h := reconciletest.New()
	inst, v, n := boundVolume(h, nil)
	h.HV.FailN("volume.wipe", 2, errors.New("busy"))

	require.NoError(t, StopVolume(h.Op("stop", n, inst, nil)))
	assert.Equal(t, 3, h.HV.Count("volume.wipe"))
	assert.Equal(t, 1, v.Wipes)
	assert.Len(t, h.Sleeps(), 2)

	h.HV.Fail("volume.wipe", errors.New("broken"))
	require.NoError(t, StopVolume(h.Op("stop", n, inst, nil)))
	assert.Equal(t, 13, h.HV.Count("volume.wipe"))
}

func TestDeleteVolume(t *testing.T) {
	h := reconciletest.New()
	inst, _, n := boundVolume(h, nil)

	require.NoError(t, DeleteVolume(h.Op("delete", n, inst, nil)))
	assert.Nil(t, h.HV.Pool("images").Volume("vol_1"))
	assert.False(t, inst.HasResource())
	assert.Empty(t, inst.Params())

	h = reconciletest.New()
	inst, _, n = boundVolume(h, nil)
	h.HV.Fail("volume.delete", errors.New("in use"))
	err := DeleteVolume(h.Op("delete", n, inst, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can not undefine volume.")
	assert.True(t, inst.HasResource())
}

func TestVolumeSnapshots(t *testing.T) {
	h := reconciletest.New()
	inst, v, n := boundVolume(h, nil)
	kw := params.Kwargs{"snapshot_name": "nightly", "snapshot_incremental": true}

	require.NoError(t, SnapshotCreateVolume(h.Op("snapshot_create", n, inst, kw)))
	v.SetXML("<volume><name>vol_1</name><capacity>1</capacity></volume>")
	require.NoError(t, SnapshotApplyVolume(h.Op("snapshot_apply", n, inst, kw)))
	assert.True(t, h.Logged("We have different configs"))
	require.NoError(t, SnapshotDeleteVolume(h.Op("snapshot_delete", n, inst, kw)))
	assert.Zero(t, inst.BackupCount())
}
