// Package reconciletest builds reconcile environments for tests.
package reconciletest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"

	"github.com/jbweber/harrow/internal/backup"
	"github.com/jbweber/harrow/internal/hypervisor/hvtest"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/state"
	"github.com/jbweber/harrow/internal/template"
)

// UUID is the instance_uuid generated by harness resolvers.
const UUID = "00000000-0000-4000-8000-000000000001"

// Harness is an Env wired to a fake hypervisor, in-memory filesystems,
// a capturing logger and instant sleeps.
type Harness struct {
	Env *reconcile.Env
	HV  *hvtest.Hypervisor
	// Fs backs persistent backups and template resources.
	Fs   afero.Fs
	Hook *test.Hook

	mu     sync.Mutex
	sleeps []time.Duration
}

// New returns a Harness with the default retry policy.
func New() *Harness {
	hv := hvtest.New()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &Harness{HV: hv, Fs: hv.Fs, Hook: hook}
	h.Env = &reconcile.Env{
		Opener:   hv,
		Renderer: &template.Renderer{Resources: hv.Fs},
		Resolver: &params.Resolver{NewID: func() string { return UUID }},
		Backups:  &backup.Store{Fs: hv.Fs},
		Retry:    reconcile.DefaultRetry(),
		Sleep:    h.sleep,
		Log:      logrus.NewEntry(logger),
	}
	return h
}

func (h *Harness) sleep(_ context.Context, d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sleeps = append(h.sleeps, d)
	return nil
}

// Sleeps returns the recorded sleep durations.
func (h *Harness) Sleeps() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Duration, len(h.sleeps))
	copy(out, h.sleeps)
	return out
}

// Op builds an operation for inst declared by node.
func (h *Harness) Op(operation string, node *state.Node, inst *state.Instance, kw params.Kwargs) *reconcile.Op {
	return h.Env.NewOp(context.Background(), operation, node, inst, kw)
}

// Logged reports whether any entry contains substr.
func (h *Harness) Logged(substr string) bool {
	for _, e := range h.Hook.AllEntries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// Node returns a node declaration of kind with properties.
func Node(name, kind string, props params.Params) *state.Node {
	return &state.Node{Name: name, Kind: kind, LibvirtAuth: "qemu:///system", Properties: props}
}
