// Package backup stores configuration snapshots of hypervisor objects.
//
// Two modes exist. Incremental backups live in the instance state under the
// key "{instance}-{snapshot}". Persistent backups live on disk under
// {base}/{snapshot}/{resource}.xml, with an optional {resource}_raw sibling
// holding a saved domain for full dumps. Creating an existing backup and
// reading or deleting a missing one are non-recoverable errors.
package backup

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/naming"
)

// Holder keeps incremental backups. *state.Instance satisfies it.
type Holder interface {
	Backup(key string) (string, bool)
	PutBackup(key, xml string)
	DeleteBackup(key string)
}

// Request identifies one backup.
type Request struct {
	InstanceID   string
	ResourceID   string
	SnapshotName string
	Incremental  bool
	// BaseDir is the root of persistent backups.
	BaseDir string
}

// Key returns the backup key, failing when no snapshot name was given.
func (r Request) Key() (string, error) {
	if r.SnapshotName == "" {
		return "", fault.NonRecoverable("Backup name must be provided.")
	}
	return naming.BackupKey(r.InstanceID, r.SnapshotName), nil
}

// Dir returns the persistent backup directory of the snapshot.
func (r Request) Dir() string {
	return naming.SnapshotDir(r.BaseDir, r.SnapshotName)
}

// Store reads and writes backups. Persistent backups go through Fs.
type Store struct {
	Fs afero.Fs
}

// NewStore returns a Store on the host filesystem.
func NewStore() *Store {
	return &Store{Fs: afero.NewOsFs()}
}

// Create records xml as a new backup.
func (s *Store) Create(h Holder, req Request, xml string) error {
	key, err := req.Key()
	if err != nil {
		return err
	}

	if req.Incremental {
		if _, ok := h.Backup(key); ok {
			return fault.NonRecoverable("Snapshot %s already exists.", key)
		}
		h.PutBackup(key, xml)
		return nil
	}

	path := naming.XMLBackupFile(req.Dir(), req.ResourceID)
	existing, err := s.read(path)
	if err != nil {
		return err
	}
	if existing != "" {
		return fault.NonRecoverable("Backup %s already exists.", key)
	}
	if err := s.Fs.MkdirAll(req.Dir(), 0o750); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", req.Dir(), err)
	}
	if err := afero.WriteFile(s.Fs, path, []byte(xml), 0o640); err != nil {
		return fmt.Errorf("failed to write backup %s: %w", path, err)
	}
	return nil
}

// Load returns a stored backup.
func (s *Store) Load(h Holder, req Request) (string, error) {
	key, err := req.Key()
	if err != nil {
		return "", err
	}

	if req.Incremental {
		xml, ok := h.Backup(key)
		if !ok {
			return "", fault.NonRecoverable("No snapshots found with name: %s.", key)
		}
		return xml, nil
	}

	xml, err := s.read(naming.XMLBackupFile(req.Dir(), req.ResourceID))
	if err != nil {
		return "", err
	}
	if xml == "" {
		return "", fault.NonRecoverable("No backups found with name: %s.", key)
	}
	return xml, nil
}

// Delete removes a stored backup.
func (s *Store) Delete(h Holder, req Request) error {
	key, err := req.Key()
	if err != nil {
		return err
	}

	if req.Incremental {
		if _, ok := h.Backup(key); !ok {
			return fault.NonRecoverable("No snapshots found with name: %s.", key)
		}
		h.DeleteBackup(key)
		return nil
	}

	path := naming.XMLBackupFile(req.Dir(), req.ResourceID)
	xml, err := s.read(path)
	if err != nil {
		return err
	}
	if xml == "" {
		return fault.NonRecoverable("No backups found with name: %s.", key)
	}
	if err := s.Fs.Remove(path); err != nil {
		return fmt.Errorf("failed to remove backup %s: %w", path, err)
	}
	return nil
}

// read returns the file content or "" when it does not exist.
func (s *Store) read(path string) (string, error) {
	data, err := afero.ReadFile(s.Fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read backup %s: %w", path, err)
	}
	return string(data), nil
}

// Same reports whether two descriptions match once surrounding whitespace is
// trimmed.
func Same(stored, current string) bool {
	return strings.TrimSpace(stored) == strings.TrimSpace(current)
}
