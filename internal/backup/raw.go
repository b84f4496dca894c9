package backup

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/naming"
)

// RawPath returns where the saved state of the request's domain lives.
func (r Request) RawPath() string {
	return naming.RawBackupFile(r.Dir(), r.ResourceID)
}

// RawExists reports whether a saved state file exists.
func (s *Store) RawExists(req Request) (bool, error) {
	ok, err := afero.Exists(s.Fs, req.RawPath())
	if err != nil {
		return false, fmt.Errorf("failed to stat backup %s: %w", req.RawPath(), err)
	}
	return ok, nil
}

// PrepareRaw checks that no saved state exists yet, creates the snapshot
// directory and returns the path the hypervisor should save into.
func (s *Store) PrepareRaw(req Request) (string, error) {
	key, err := req.Key()
	if err != nil {
		return "", err
	}
	exists, err := s.RawExists(req)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fault.NonRecoverable("Backup %s already exists.", key)
	}
	if err := s.Fs.MkdirAll(req.Dir(), 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory %s: %w", req.Dir(), err)
	}
	return req.RawPath(), nil
}

// RequireRaw returns the saved state path, failing when it is missing.
func (s *Store) RequireRaw(req Request) (string, error) {
	key, err := req.Key()
	if err != nil {
		return "", err
	}
	exists, err := s.RawExists(req)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fault.NonRecoverable("No backups found with name: %s.", key)
	}
	return req.RawPath(), nil
}

// RemoveRaw deletes the saved state file.
func (s *Store) RemoveRaw(req Request) error {
	path, err := s.RequireRaw(req)
	if err != nil {
		return err
	}
	if err := s.Fs.Remove(path); err != nil {
		return fmt.Errorf("failed to remove backup %s: %w", path, err)
	}
	return nil
}
