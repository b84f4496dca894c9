package backup

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/state"
)

func newStore() *Store {
	return &Store{Fs: afero.NewMemMapFs()}
}

func request(incremental bool) Request {
	return Request{
		InstanceID:   "vm_abc123",
		ResourceID:   "web",
		SnapshotName: "nightly/1",
		Incremental:  incremental,
		BaseDir:      "/srv/backups",
	}
}

func TestNameRequired(t *testing.T) {
	s := newStore()
	inst := state.NewInstance("vm_abc123")
	req := request(true)
	req.SnapshotName = ""

	err := s.Create(inst, req, "<domain/>")
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Equal(t, "Backup name must be provided.", err.Error())

	_, err = s.Load(inst, req)
	assert.Error(t, err)
	assert.Error(t, s.Delete(inst, req))
	_, err = s.PrepareRaw(req)
	assert.Error(t, err)
}

func TestIncrementalLifecycle(t *testing.T) {
	s := newStore()
	inst := state.NewInstance("vm_abc123")
	req := request(true)

	require.NoError(t, s.Create(inst, req, "<domain>v1</domain>"))

	err := s.Create(inst, req, "<domain>v2</domain>")
	require.Error(t, err)
	assert.True(t, fault.IsNonRecoverable(err))
	assert.Equal(t, "Snapshot vm_abc123-nightly/1 already exists.", err.Error())

	xml, err := s.Load(inst, req)
	require.NoError(t, err)
	assert.Equal(t, "<domain>v1</domain>", xml, "failed create must leave the backup unchanged")

	require.NoError(t, s.Delete(inst, req))
	assert.Zero(t, inst.BackupCount())

	err = s.Delete(inst, req)
	require.Error(t, err)
	assert.Equal(t, "No snapshots found with name: vm_abc123-nightly/1.", err.Error())

	_, err = s.Load(inst, req)
	assert.Error(t, err)
}

func TestPersistentLifecycle(t *testing.T) {
	s := newStore()
	inst := state.NewInstance("vm_abc123")
	req := request(false)

	require.NoError(t, s.Create(inst, req, "<domain>v1</domain>"))
	assert.Zero(t, inst.BackupCount(), "persistent mode never touches instance state")

	data, err := afero.ReadFile(s.Fs, "/srv/backups/nightly_1/web.xml")
	require.NoError(t, err)
	assert.Equal(t, "<domain>v1</domain>", string(data))

	err = s.Create(inst, req, "<domain>v2</domain>")
	require.Error(t, err)
	assert.Equal(t, "Backup vm_abc123-nightly/1 already exists.", err.Error())

	xml, err := s.Load(inst, req)
	require.NoError(t, err)
	assert.Equal(t, "<domain>v1</domain>", xml)

	require.NoError(t, s.Delete(inst, req))
	exists, err := afero.Exists(s.Fs, "/srv/backups/nightly_1/web.xml")
	require.NoError(t, err)
	assert.False(t, exists)

	err = s.Delete(inst, req)
	require.Error(t, err)
	assert.Equal(t, "No backups found with name: vm_abc123-nightly/1.", err.Error())
}

func TestPersistentEmptyFileIsAbsent(t *testing.T) {
	s := newStore()
	inst := state.NewInstance("vm_abc123")
	req := request(false)
	require.NoError(t, afero.WriteFile(s.Fs, "/srv/backups/nightly_1/web.xml", nil, 0o640))

	_, err := s.Load(inst, req)
	assert.Error(t, err)
	require.NoError(t, s.Create(inst, req, "<domain/>"))
}

func TestRaw(t *testing.T) {
	s := newStore()
	req := request(false)

	_, err := s.RequireRaw(req)
	assert.Error(t, err)
	assert.Error(t, s.RemoveRaw(req))

	path, err := s.PrepareRaw(req)
	require.NoError(t, err)
	assert.Equal(t, "/srv/backups/nightly_1/web_raw", path)
	isDir, err := afero.DirExists(s.Fs, "/srv/backups/nightly_1")
	require.NoError(t, err)
	assert.True(t, isDir)

	require.NoError(t, afero.WriteFile(s.Fs, path, []byte("state"), 0o600))

	_, err = s.PrepareRaw(req)
	require.Error(t, err)
	assert.Equal(t, "Backup vm_abc123-nightly/1 already exists.", err.Error())

	got, err := s.RequireRaw(req)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	require.NoError(t, s.RemoveRaw(req))
	exists, err := s.RawExists(req)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSame(t *testing.T) {
	assert.True(t, Same("<domain/>\n", "  <domain/>"))
	assert.False(t, Same("<domain>a</domain>", "<domain>b</domain>"))
}
