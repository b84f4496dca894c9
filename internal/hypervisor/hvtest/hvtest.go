// Package hvtest provides an in-memory hypervisor for tests.
//
// Objects live in maps keyed by name. Every call is recorded as
// "<kind>.<method> <name>" and can be made to fail with Fail or FailN using
// either "<kind>.<method>" or "<kind>.<method>:<name>" as the key.
package hvtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/jbweber/harrow/internal/hypervisor"
)

type failure struct {
	err       error
	remaining int // negative means forever
}

// Hypervisor is a fake hypervisor.Opener.
type Hypervisor struct {
	mu sync.Mutex

	domains  map[string]*Domain
	networks map[string]*Network
	pools    map[string]*Pool

	failures map[string]*failure
	calls    []string

	// Fs receives the state files written by Domain.Save.
	Fs afero.Fs

	OpenErr error
	Opens   int
	Closes  int
	Auths   []string
}

var _ hypervisor.Opener = (*Hypervisor)(nil)

// New returns an empty fake hypervisor backed by an in-memory filesystem.
func New() *Hypervisor {
	return &Hypervisor{
		domains:  make(map[string]*Domain),
		networks: make(map[string]*Network),
		pools:    make(map[string]*Pool),
		failures: make(map[string]*failure),
		Fs:       afero.NewMemMapFs(),
	}
}

// Open implements hypervisor.Opener.
func (h *Hypervisor) Open(_ context.Context, auth string) (hypervisor.Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Auths = append(h.Auths, auth)
	if h.OpenErr != nil {
		return nil, h.OpenErr
	}
	h.Opens++
	return &conn{h: h}, nil
}

// Fail makes every call matching key return err.
func (h *Hypervisor) Fail(key string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[key] = &failure{err: err, remaining: -1}
}

// FailN makes the next n calls matching key return err.
func (h *Hypervisor) FailN(key string, n int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[key] = &failure{err: err, remaining: n}
}

// Calls returns a copy of the recorded calls.
func (h *Hypervisor) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

// Called reports whether a call starting with prefix was recorded.
func (h *Hypervisor) Called(prefix string) bool {
	return h.Count(prefix) > 0
}

// Count returns how many recorded calls start with prefix.
func (h *Hypervisor) Count(prefix string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Domain returns the named domain or nil.
func (h *Hypervisor) Domain(name string) *Domain {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.domains[name]
}

// Network returns the named network or nil.
func (h *Hypervisor) Network(name string) *Network {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.networks[name]
}

// Pool returns the named pool or nil.
func (h *Hypervisor) Pool(name string) *Pool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pools[name]
}

// record logs the call and returns the injected failure, if any. The caller
// must hold h.mu.
func (h *Hypervisor) record(kind, method, name string) error {
	h.calls = append(h.calls, fmt.Sprintf("%s.%s %s", kind, method, name))

	for _, key := range []string{kind + "." + method + ":" + name, kind + "." + method} {
		f, ok := h.failures[key]
		if !ok {
			continue
		}
		if f.remaining == 0 {
			continue
		}
		if f.remaining > 0 {
			f.remaining--
		}
		return f.err
	}
	return nil
}

func notFound(kind, name string) error {
	return fmt.Errorf("%s %q: %w", kind, name, hypervisor.ErrNotFound)
}
