package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const lockRetryDelay = 100 * time.Millisecond

// FileStore persists instance state as one YAML file per instance under a
// directory. On the host filesystem writers hold an flock on a sibling
// .lock file; other filesystems are locked within the process.
type FileStore struct {
	fs  afero.Fs
	dir string
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore returns a store rooted at dir on the host filesystem. The
// directory is created on first write.
func NewFileStore(dir string) *FileStore {
	return NewFileStoreFs(afero.NewOsFs(), dir)
}

// NewFileStoreFs returns a store rooted at dir on fs.
func NewFileStoreFs(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir, now: time.Now, locks: make(map[string]*sync.Mutex)}
}

// Dir returns the state directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

// Load reads the state of id. Missing state yields a fresh Instance.
func (s *FileStore) Load(id string) (*Instance, error) {
	data, err := afero.ReadFile(s.fs, s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return NewInstance(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", id, err)
	}

	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", id, err)
	}
	if r.ID == "" {
		r.ID = id
	}
	return FromRecord(r), nil
}

// Save writes inst atomically.
func (s *FileStore) Save(inst *Instance) error {
	if err := s.fs.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	inst.Touch(s.now())
	data, err := yaml.Marshal(inst.Record())
	if err != nil {
		return fmt.Errorf("failed to marshal state %s: %w", inst.ID(), err)
	}

	tmp := s.path(inst.ID()) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state %s: %w", inst.ID(), err)
	}
	if err := s.fs.Rename(tmp, s.path(inst.ID())); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write state %s: %w", inst.ID(), err)
	}
	return nil
}

// Update loads id under an exclusive lock, runs fn and saves the result.
// State is saved even when fn fails so that partial progress such as a
// freshly bound resource id survives for the next attempt.
func (s *FileStore) Update(ctx context.Context, id string, fn func(*Instance) error) error {
	if err := s.fs.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	inst, err := s.Load(id)
	if err != nil {
		return err
	}

	fnErr := fn(inst)
	if err := s.Save(inst); err != nil {
		if fnErr != nil {
			return fmt.Errorf("%w (state not saved: %v)", fnErr, err)
		}
		return err
	}
	return fnErr
}

// lock takes the exclusive lock of id.
func (s *FileStore) lock(ctx context.Context, id string) (func(), error) {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		s.mu.Lock()
		l, ok := s.locks[id]
		if !ok {
			l = &sync.Mutex{}
			s.locks[id] = l
		}
		s.mu.Unlock()
		l.Lock()
		return l.Unlock, nil
	}

	fl := flock.New(filepath.Join(s.dir, id+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire flock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to acquire flock %s: context done", fl.Path())
	}
	return func() { _ = fl.Unlock() }, nil
}

// List returns all stored instances sorted by id.
func (s *FileStore) List() ([]*Instance, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(ids)

	out := make([]*Instance, 0, len(ids))
	for _, id := range ids {
		inst, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// Delete removes the stored state of id. Missing state is not an error.
func (s *FileStore) Delete(id string) error {
	if err := s.fs.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete state %s: %w", id, err)
	}
	_ = s.fs.Remove(filepath.Join(s.dir, id+".lock"))
	return nil
}
