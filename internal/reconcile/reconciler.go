package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jbweber/harrow/internal/backup"
	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/template"
)

// ErrNotConverged is returned by Converge when the attempts are exhausted.
var ErrNotConverged = errors.New("not converged")

// Kind describes one resource kind to the generic Reconciler.
type Kind[H any] struct {
	// Name is used in messages: "Failed to find the {Name}".
	Name string
	// Template selects the built-in definition.
	Template template.Kind
	// CreateFailed is the non-recoverable message of a failed define/create.
	CreateFailed string
	// Noun names the resource in "No {Noun} for ..." messages; Name when
	// empty.
	Noun string

	Lookup  func(c hypervisor.Conn, p params.Params, name string) (H, error)
	Create  func(c hypervisor.Conn, p params.Params, xml string) (H, error)
	Handle  func(h H) string
	XMLDesc func(h H) (string, error)

	// Bound, when set, runs after the object was created or looked up for
	// binding, before params are recorded.
	Bound func(h H, p params.Params) error
}

// Reconciler drives one resource kind through the lifecycle protocol.
type Reconciler[H any] struct {
	Kind Kind[H]
}

// New returns a Reconciler for k.
func New[H any](k Kind[H]) *Reconciler[H] {
	return &Reconciler[H]{Kind: k}
}

// WithConnection opens a hypervisor connection with the resolved auth, runs
// fn and closes the connection on every path.
func (r *Reconciler[H]) WithConnection(op *Op, fn func(c hypervisor.Conn) error) error {
	return WithConnection(op, fn)
}

// WithConnection is the kind-independent form of Reconciler.WithConnection.
func WithConnection(op *Op, fn func(c hypervisor.Conn) error) error {
	auth, _ := op.Resolve()
	env := op.env

	c, err := env.Opener.Open(op.Ctx, auth)
	env.Metrics.Connection(err)
	if err != nil {
		return fault.WrapNonRecoverable(err, "Failed to open connection to the hypervisor")
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			op.Log.WithError(cerr).Warn("failed to close hypervisor connection")
		}
	}()

	return fn(c)
}

// Find looks up the bound resource. Both a missing object and a failed
// lookup are non-recoverable.
func (r *Reconciler[H]) Find(op *Op, c hypervisor.Conn) (H, error) {
	return r.lookup(op, c, op.Instance.ResourceID())
}

func (r *Reconciler[H]) lookup(op *Op, c hypervisor.Conn, name string) (H, error) {
	res := hypervisor.Classify(r.Kind.Lookup(c, op.Params(), name))
	if !res.Ok() {
		op.Log.WithField("outcome", res.Outcome.String()).Debugf("lookup of %s %q", r.Kind.Name, name)
		var zero H
		return zero, fault.WrapNonRecoverable(res.Err, "Failed to find the %s", r.Kind.Name)
	}
	return res.Handle, nil
}

// Provision binds the instance to its hypervisor object. An external
// resource is looked up by name and bound without any mutating call; an
// already bound instance is looked up again; otherwise the definition is
// rendered and created. The returned bool reports a fresh creation.
func (r *Reconciler[H]) Provision(op *Op, c hypervisor.Conn) (H, bool, error) {
	var zero H
	inst := op.Instance
	p := op.Params()

	if inst.External() {
		name := inst.ResourceID()
		if name == "" {
			name = p.String("name")
		}
		h, err := r.lookup(op, c, name)
		if err != nil {
			return zero, false, err
		}
		if err := r.bind(op, h, p); err != nil {
			return zero, false, err
		}
		inst.SetExternal(true)
		op.Log.Infof("Bound external %s %s", r.Kind.Name, r.Kind.Handle(h))
		return h, false, nil
	}

	if inst.HasResource() {
		op.Log.Infof("%s is already alive, skip create.", capitalize(r.Kind.Name))
		h, err := r.Find(op, c)
		return h, false, err
	}

	xml, err := op.env.Renderer.Render(r.Kind.Template, op.Source(), p)
	if err != nil {
		return zero, false, fault.WrapNonRecoverable(err, "Failed to render %s definition", r.Kind.Name)
	}
	op.Log.Debugf("%s definition: %q", r.Kind.Name, xml)

	h, err := r.Kind.Create(c, p, xml)
	if err != nil {
		return zero, false, fault.WrapNonRecoverable(err, "%s", r.Kind.CreateFailed)
	}
	if err := r.bind(op, h, p); err != nil {
		return zero, false, err
	}
	inst.SetExternal(false)
	op.Log.Infof("%s %s has created.", capitalize(r.Kind.Name), r.Kind.Handle(h))
	op.Log.Debugf("Params: %v", p)
	return h, true, nil
}

func (r *Reconciler[H]) bind(op *Op, h H, p params.Params) error {
	if r.Kind.Bound != nil {
		if err := r.Kind.Bound(h, p); err != nil {
			return err
		}
	}
	op.Instance.Bind(r.Kind.Handle(h), p)
	return nil
}

// Teardown destroys the bound object with destroy and releases the
// instance. It is a no-op without a bound resource or for external ones.
func (r *Reconciler[H]) Teardown(op *Op, destroy func(c hypervisor.Conn, h H) error) error {
	if op.Skip(fmt.Sprintf("No %s for delete", r.noun())) {
		return nil
	}
	return r.WithConnection(op, func(c hypervisor.Conn) error {
		h, err := r.Find(op, c)
		if err != nil {
			return err
		}
		if err := destroy(c, h); err != nil {
			return err
		}
		op.Instance.Release()
		return nil
	})
}

// SnapshotCreate stores the current description of the bound object as a
// backup.
func (r *Reconciler[H]) SnapshotCreate(op *Op) error {
	if err := op.Require(fmt.Sprintf("No %s for backup", r.noun())); err != nil {
		return err
	}
	req := op.BackupRequest()
	return r.WithConnection(op, func(c hypervisor.Conn) error {
		xml, err := r.describe(op, c)
		if err != nil {
			return err
		}
		if err := op.env.Backups.Create(op.Instance, req, xml); err != nil {
			return err
		}
		key, _ := req.Key()
		op.Log.Infof("Backup %s is created.", key)
		op.Log.Debugf("Current config %q", xml)
		return nil
	})
}

// SnapshotApply compares a backup with the current description and logs
// the result.
func (r *Reconciler[H]) SnapshotApply(op *Op) error {
	if err := op.Require(fmt.Sprintf("No %s for restore", r.noun())); err != nil {
		return err
	}
	req := op.BackupRequest()
	return r.WithConnection(op, func(c hypervisor.Conn) error {
		xml, err := r.describe(op, c)
		if err != nil {
			return err
		}
		stored, err := op.env.Backups.Load(op.Instance, req)
		if err != nil {
			return err
		}
		LogComparison(op, req, stored, xml)
		return nil
	})
}

// SnapshotDelete removes a backup. No connection is needed.
func (r *Reconciler[H]) SnapshotDelete(op *Op) error {
	if err := op.Require(fmt.Sprintf("No %s for backup delete", r.noun())); err != nil {
		return err
	}
	op.Resolve()
	req := op.BackupRequest()
	if err := op.env.Backups.Delete(op.Instance, req); err != nil {
		return err
	}
	key, _ := req.Key()
	op.Log.Infof("Backup deleted: %s", key)
	return nil
}

func (r *Reconciler[H]) describe(op *Op, c hypervisor.Conn) (string, error) {
	h, err := r.Find(op, c)
	if err != nil {
		return "", err
	}
	xml, err := r.Kind.XMLDesc(h)
	if err != nil {
		return "", fault.WrapNonRecoverable(err, "Failed to describe the %s", r.Kind.Name)
	}
	return xml, nil
}

// LogComparison logs whether a stored description still matches the
// current one.
func LogComparison(op *Op, req backup.Request, stored, current string) {
	if backup.Same(stored, current) {
		key, _ := req.Key()
		op.Log.Infof("Already used such configuration: %s", key)
		return
	}
	op.Log.Infof("We have different configs,\n%q\nvs\n%q\n", strings.TrimSpace(stored), strings.TrimSpace(current))
}

// Converge calls check up to Retry.Attempts times, sleeping Retry.Interval
// between calls, until check reports done. An error from check aborts the
// loop. Exhausting the attempts returns ErrNotConverged.
func Converge(op *Op, check func(attempt int) (bool, error)) error {
	return ConvergeEvery(op, op.env.Retry.Interval, check)
}

// ConvergeEvery is Converge with an explicit interval.
func ConvergeEvery(op *Op, interval time.Duration, check func(attempt int) (bool, error)) error {
	env := op.env
	attempts := env.Retry.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		done, err := check(i)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if i == attempts-1 {
			break
		}
		env.Metrics.Retry(op.Node.Kind, op.Name)
		if err := env.sleep(op.Ctx, interval); err != nil {
			return fault.WrapRecoverable(err, "Interrupted while waiting")
		}
	}
	return ErrNotConverged
}

func (r *Reconciler[H]) noun() string {
	if r.Kind.Noun != "" {
		return r.Kind.Noun
	}
	return r.Kind.Name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
