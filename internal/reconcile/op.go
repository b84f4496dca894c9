package reconcile

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/harrow/internal/backup"
	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/state"
	"github.com/jbweber/harrow/internal/template"
)

// Op is the explicit context of one operation: the static node, the owned
// instance state, the call arguments and a logger carrying the operation
// fields.
type Op struct {
	Ctx      context.Context
	Name     string
	Node     *state.Node
	Instance *state.Instance
	Kwargs   params.Kwargs
	Log      *logrus.Entry

	env      *Env
	resolved bool
	auth     string
	params   params.Params
}

// Resolve merges node, instance and call configuration once per operation
// and returns the effective auth and params. The params map is the one held
// by the instance, so changes to it are persisted.
func (o *Op) Resolve() (string, params.Params) {
	if !o.resolved {
		o.auth, o.params = o.env.Resolver.Resolve(o.Node, o.Instance, o.Kwargs)
		o.resolved = true
	}
	return o.auth, o.params
}

// Params is shorthand for the resolved params.
func (o *Op) Params() params.Params {
	_, p := o.Resolve()
	return p
}

// Sleep waits d with the environment's SleepFunc.
func (o *Op) Sleep(d time.Duration) error {
	return o.env.sleep(o.Ctx, d)
}

// Retry returns the retry policy of the environment.
func (o *Op) Retry() Retry { return o.env.Retry }

// Env returns the environment the operation runs in.
func (o *Op) Env() *Env { return o.env }

// Source returns the template override passed to the call.
func (o *Op) Source() template.Source {
	return template.Source{
		Resource: o.Kwargs.TemplateResource(),
		Content:  o.Kwargs.TemplateContent(),
	}
}

// BackupRequest describes the backup named by the call.
func (o *Op) BackupRequest() backup.Request {
	return backup.Request{
		InstanceID:   o.Instance.ID(),
		ResourceID:   o.Instance.ResourceID(),
		SnapshotName: o.Kwargs.SnapshotName(),
		Incremental:  o.Kwargs.Incremental(),
		BaseDir:      o.Node.BackupBase(),
	}
}

// Require fails with a non-recoverable error carrying msg when the instance
// has no bound resource.
func (o *Op) Require(msg string) error {
	if !o.Instance.HasResource() {
		return fault.NonRecoverable("%s", msg)
	}
	return nil
}

// Skip reports whether a teardown-style operation has nothing to do: no
// resource is bound (logged with missing) or the resource is external.
func (o *Op) Skip(missing string) bool {
	if !o.Instance.HasResource() {
		o.Log.Info(missing)
		return true
	}
	if o.Instance.External() {
		o.Log.Info("External resource, skip")
		return true
	}
	return false
}
