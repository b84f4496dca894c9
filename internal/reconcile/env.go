package reconcile

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/harrow/internal/backup"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/metrics"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/state"
	"github.com/jbweber/harrow/internal/template"
)

// Retry bounds the convergence loops.
type Retry struct {
	// Attempts is the number of state checks of a convergence loop.
	Attempts int
	// Interval is the sleep between power or pool state checks.
	Interval time.Duration
	// LeaseInterval is the sleep between DHCP lease table scans.
	LeaseInterval time.Duration
	// SampleInterval is the CPU sampling window of performance.
	SampleInterval time.Duration
}

// DefaultRetry returns 10 attempts, 30s between state checks, 60s between
// lease scans and a 5s CPU sampling window.
func DefaultRetry() Retry {
	return Retry{
		Attempts:       10,
		Interval:       30 * time.Second,
		LeaseInterval:  60 * time.Second,
		SampleInterval: 5 * time.Second,
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Env bundles the collaborators shared by every operation of a process.
type Env struct {
	Opener   hypervisor.Opener
	Renderer *template.Renderer
	Resolver *params.Resolver
	Backups  *backup.Store
	Retry    Retry
	Sleep    SleepFunc
	Log      *logrus.Entry
	Metrics  *metrics.Metrics
}

// NewEnv returns an Env with the default retry policy, real sleeps, random
// instance UUIDs and backups on the host filesystem.
func NewEnv(opener hypervisor.Opener, renderer *template.Renderer, log *logrus.Entry) *Env {
	return &Env{
		Opener:   opener,
		Renderer: renderer,
		Resolver: params.NewResolver(),
		Backups:  backup.NewStore(),
		Retry:    DefaultRetry(),
		Sleep:    Sleep,
		Log:      log,
	}
}

// NewOp prepares the explicit context of one operation invocation.
func (e *Env) NewOp(ctx context.Context, operation string, node *state.Node, inst *state.Instance, kw params.Kwargs) *Op {
	if node == nil {
		node = &state.Node{Name: inst.ID()}
	}
	if kw == nil {
		kw = params.Kwargs{}
	}
	log := e.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Op{
		Ctx:      ctx,
		Name:     operation,
		Node:     node,
		Instance: inst,
		Kwargs:   kw,
		Log: log.WithFields(logrus.Fields{
			"kind":      node.Kind,
			"node":      node.Name,
			"instance":  inst.ID(),
			"operation": operation,
		}),
		env: e,
	}
}

func (e *Env) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep == nil {
		return Sleep(ctx, d)
	}
	return e.Sleep(ctx, d)
}
