// Package plugin maps (kind, operation) pairs to the lifecycle handlers of
// each resource kind and decorates every call with logging and metrics.
package plugin

import (
	"context"
	"sort"
	"time"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/iso"
	"github.com/jbweber/harrow/internal/metrics"
	"github.com/jbweber/harrow/internal/network"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/state"
	"github.com/jbweber/harrow/internal/storage"
	"github.com/jbweber/harrow/internal/vm"
)

// Resource kinds.
const (
	KindDomain  = "domain"
	KindNetwork = "network"
	KindPool    = "pool"
	KindVolume  = "volume"
	KindISO     = "iso"
)

// Operation names.
const (
	OpCreate         = "create"
	OpConfigure      = "configure"
	OpStart          = "start"
	OpStop           = "stop"
	OpSuspend        = "suspend"
	OpResume         = "resume"
	OpReboot         = "reboot"
	OpUpdate         = "update"
	OpPerformance    = "performance"
	OpDelete         = "delete"
	OpSnapshotCreate = "snapshot_create"
	OpSnapshotApply  = "snapshot_apply"
	OpSnapshotDelete = "snapshot_delete"
	OpLink           = "link"
	OpUnlink         = "unlink"
)

// Kinds lists the resource kinds in install order.
var Kinds = []string{KindPool, KindVolume, KindISO, KindNetwork, KindDomain}

// Handler runs one operation.
type Handler func(op *reconcile.Op) error

// LinkHandler runs a relationship operation on the target with the source
// instance of the relationship.
type LinkHandler func(op *reconcile.Op, source *state.Instance) error

var aliases = map[string]string{
	"perfomance": OpPerformance,
}

var handlers = map[string]map[string]Handler{
	KindDomain: {
		OpCreate:         vm.Create,
		OpConfigure:      vm.Configure,
		OpStart:          vm.Start,
		OpStop:           vm.Stop,
		OpSuspend:        vm.Suspend,
		OpResume:         vm.Resume,
		OpReboot:         vm.Reboot,
		OpUpdate:         vm.Update,
		OpPerformance:    vm.Performance,
		OpDelete:         vm.Delete,
		OpSnapshotCreate: vm.SnapshotCreate,
		OpSnapshotApply:  vm.SnapshotApply,
		OpSnapshotDelete: vm.SnapshotDelete,
	},
	KindNetwork: {
		OpCreate:         network.Create,
		OpDelete:         network.Delete,
		OpSnapshotCreate: network.SnapshotCreate,
		OpSnapshotApply:  network.SnapshotApply,
		OpSnapshotDelete: network.SnapshotDelete,
	},
	KindPool: {
		OpCreate:         storage.CreatePool,
		OpConfigure:      storage.ConfigurePool,
		OpStart:          storage.StartPool,
		OpStop:           storage.StopPool,
		OpDelete:         storage.DeletePool,
		OpSnapshotCreate: storage.SnapshotCreatePool,
		OpSnapshotApply:  storage.SnapshotApplyPool,
		OpSnapshotDelete: storage.SnapshotDeletePool,
	},
	KindVolume: {
		OpCreate:         storage.CreateVolume,
		OpStart:          storage.StartVolume,
		OpStop:           storage.StopVolume,
		OpDelete:         storage.DeleteVolume,
		OpSnapshotCreate: storage.SnapshotCreateVolume,
		OpSnapshotApply:  storage.SnapshotApplyVolume,
		OpSnapshotDelete: storage.SnapshotDeleteVolume,
	},
	KindISO: {
		OpCreate: iso.Create,
		OpDelete: iso.Delete,
	},
}

var linkHandlers = map[string]map[string]LinkHandler{
	KindNetwork: {
		OpLink:   network.Link,
		OpUnlink: network.Unlink,
	},
}

// Canonical resolves operation aliases.
func Canonical(operation string) string {
	if name, ok := aliases[operation]; ok {
		return name
	}
	return operation
}

// Supports reports whether kind implements operation.
func Supports(kind, operation string) bool {
	operation = Canonical(operation)
	if _, ok := handlers[kind][operation]; ok {
		return true
	}
	_, ok := linkHandlers[kind][operation]
	return ok
}

// Operations returns the sorted operations of kind.
func Operations(kind string) []string {
	var out []string
	for name := range handlers[kind] {
		out = append(out, name)
	}
	for name := range linkHandlers[kind] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Plugin dispatches operations within one environment.
type Plugin struct {
	Env *reconcile.Env
}

// New returns a Plugin running operations in env.
func New(env *reconcile.Env) *Plugin {
	return &Plugin{Env: env}
}

// Run executes operation on inst, declared by node.
func (p *Plugin) Run(ctx context.Context, operation string, node *state.Node, inst *state.Instance, kw params.Kwargs) error {
	operation = Canonical(operation)
	h, ok := handlers[node.Kind][operation]
	if !ok {
		return fault.NonRecoverable("Operation %s is not supported for %s", operation, node.Kind)
	}
	inst.SetKind(node.Kind)

	op := p.Env.NewOp(ctx, operation, node, inst, kw)
	return p.observe(op, func() error { return h(op) })
}

// RunLink executes a relationship operation on the target instance with
// source as the other end of the relationship.
func (p *Plugin) RunLink(ctx context.Context, operation string, node *state.Node, target, source *state.Instance, kw params.Kwargs) error {
	h, ok := linkHandlers[node.Kind][operation]
	if !ok {
		return fault.NonRecoverable("Operation %s is not supported for %s", operation, node.Kind)
	}
	target.SetKind(node.Kind)

	op := p.Env.NewOp(ctx, operation, node, target, kw)
	op.Log = op.Log.WithField("source", source.ID())
	return p.observe(op, func() error { return h(op, source) })
}

func (p *Plugin) observe(op *reconcile.Op, fn func() error) error {
	start := time.Now()
	op.Log.Debug("Operation started")

	err := fn()

	elapsed := time.Since(start)
	p.Env.Metrics.ObserveOperation(op.Node.Kind, op.Name, outcome(err), elapsed)

	log := op.Log.WithField("elapsed", elapsed.Round(time.Millisecond).String())
	switch {
	case err == nil:
		log.Debug("Operation finished")
	case fault.IsRecoverable(err):
		log.WithError(err).Warn("Operation failed, retry later")
	default:
		log.WithError(err).Error("Operation failed")
	}
	return err
}

func outcome(err error) string {
	switch fault.KindOf(err) {
	case fault.KindNone:
		if err == nil {
			return metrics.OutcomeOK
		}
		return metrics.OutcomeNonRecoverable
	case fault.KindRecoverable:
		return metrics.OutcomeRecoverable
	default:
		return metrics.OutcomeNonRecoverable
	}
}
