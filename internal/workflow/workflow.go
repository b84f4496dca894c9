// Package workflow plays the orchestrator: it runs lifecycle operations for
// the instances of a blueprint, persisting instance state around every
// operation.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jbweber/harrow/api/v1alpha1"
	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/loader"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/plugin"
	"github.com/jbweber/harrow/internal/state"
)

// Store persists instance state.
type Store interface {
	Load(id string) (*state.Instance, error)
	Update(ctx context.Context, id string, fn func(*state.Instance) error) error
	Delete(id string) error
}

// Step is one node of a plan with its instances and per-operation inputs.
type Step struct {
	Node      *state.Node
	Instances []string
	Inputs    map[string]map[string]any
}

// Plan is a blueprint prepared for execution.
type Plan struct {
	Name  string
	Steps []*Step
}

// NewPlan expands b into steps.
func NewPlan(b *v1alpha1.Blueprint, d loader.Defaults) *Plan {
	nodes := loader.Nodes(b, d)
	p := &Plan{Name: b.Name}
	for i, spec := range b.Spec.Nodes {
		p.Steps = append(p.Steps, &Step{
			Node:      nodes[i],
			Instances: spec.InstanceIDs(),
			Inputs:    spec.Inputs,
		})
	}
	return p
}

// Step returns the named step or nil.
func (p *Plan) Step(name string) *Step {
	for _, s := range p.Steps {
		if s.Node.Name == name {
			return s
		}
	}
	return nil
}

// groups returns the steps grouped by kind in install order.
func (p *Plan) groups() [][]*Step {
	byKind := make(map[string][]*Step)
	for _, s := range p.Steps {
		byKind[s.Node.Kind] = append(byKind[s.Node.Kind], s)
	}
	var out [][]*Step
	for _, kind := range plugin.Kinds {
		if steps := byKind[kind]; len(steps) > 0 {
			out = append(out, steps)
		}
	}
	return out
}

// Kwargs returns the inputs of operation merged with overrides.
func (s *Step) Kwargs(operation string, overrides params.Kwargs) params.Kwargs {
	kw := params.Kwargs{}
	for k, v := range s.Inputs[operation] {
		kw[k] = v
	}
	for k, v := range overrides {
		kw[k] = v
	}
	return kw
}

// Runner executes operations and workflows.
type Runner struct {
	Plugin *plugin.Plugin
	Store  Store
	Log    *logrus.Entry
	// Concurrency bounds the parallel instances of one kind; unlimited
	// when zero.
	Concurrency int
}

// Run executes one operation on instance id of step.
func (r *Runner) Run(ctx context.Context, step *Step, id, operation string, overrides params.Kwargs) error {
	kw := step.Kwargs(plugin.Canonical(operation), overrides)
	return r.Store.Update(ctx, id, func(inst *state.Instance) error {
		return r.Plugin.Run(ctx, operation, step.Node, inst, kw)
	})
}

// RunLink executes a relationship operation on target instance id of step
// with source as the other end.
func (r *Runner) RunLink(ctx context.Context, step *Step, id, operation, source string, overrides params.Kwargs) error {
	kw := step.Kwargs(operation, overrides)
	return r.Store.Update(ctx, id, func(target *state.Instance) error {
		return r.Store.Update(ctx, source, func(src *state.Instance) error {
			return r.Plugin.RunLink(ctx, operation, step.Node, target, src, kw)
		})
	})
}

// Install runs create, configure and start for every instance, kind by kind,
// then links domains to the networks they are connected to.
func (r *Runner) Install(ctx context.Context, p *Plan) error {
	r.Log.Infof("Installing %s", p.Name)
	for _, group := range p.groups() {
		err := r.each(ctx, group, func(step *Step, id string) error {
			for _, operation := range []string{plugin.OpCreate, plugin.OpConfigure, plugin.OpStart} {
				if !plugin.Supports(step.Node.Kind, operation) {
					continue
				}
				if err := r.Run(ctx, step, id, operation, nil); err != nil {
					return fmt.Errorf("%s %s: %w", operation, id, err)
				}
			}
			return nil
		})
		if err != nil {
			return aggregate("install", err)
		}
	}
	return aggregate("install", r.relationships(ctx, p, plugin.OpLink))
}

// Uninstall unlinks relationships, then stops and deletes every instance in
// reverse kind order. Instances left without a resource have their state
// removed.
func (r *Runner) Uninstall(ctx context.Context, p *Plan) error {
	r.Log.Infof("Uninstalling %s", p.Name)
	var result error
	if err := r.relationships(ctx, p, plugin.OpUnlink); err != nil {
		result = multierror.Append(result, err)
	}

	groups := p.groups()
	for i := len(groups) - 1; i >= 0; i-- {
		err := r.each(ctx, groups[i], func(step *Step, id string) error {
			for _, operation := range []string{plugin.OpStop, plugin.OpDelete} {
				if !plugin.Supports(step.Node.Kind, operation) {
					continue
				}
				if err := r.Run(ctx, step, id, operation, nil); err != nil {
					return fmt.Errorf("%s %s: %w", operation, id, err)
				}
			}
			return r.forget(id)
		})
		if err != nil {
			result = multierror.Append(result, err)
			return aggregate("uninstall", result)
		}
	}
	return aggregate("uninstall", result)
}

// forget removes the stored state of an instance that holds nothing.
func (r *Runner) forget(id string) error {
	inst, err := r.Store.Load(id)
	if err != nil {
		return err
	}
	if inst.HasResource() || inst.BackupCount() > 0 {
		return nil
	}
	return r.Store.Delete(id)
}

// relationships runs operation for every domain instance connected to a
// network node.
func (r *Runner) relationships(ctx context.Context, p *Plan, operation string) error {
	var result error
	for _, source := range p.Steps {
		for _, name := range source.Node.ConnectedTo {
			target := p.Step(name)
			if target == nil || !plugin.Supports(target.Node.Kind, operation) {
				continue
			}
			for _, targetID := range target.Instances {
				for _, sourceID := range source.Instances {
					if err := r.RunLink(ctx, target, targetID, operation, sourceID, nil); err != nil {
						result = multierror.Append(result, fmt.Errorf("%s %s to %s: %w", operation, sourceID, targetID, err))
					}
				}
			}
		}
	}
	return result
}

// each runs fn for every instance of steps concurrently and collects all
// failures.
func (r *Runner) each(ctx context.Context, steps []*Step, fn func(step *Step, id string) error) error {
	var (
		mu     sync.Mutex
		result error
	)
	g, ctx := errgroup.WithContext(ctx)
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for _, step := range steps {
		for _, id := range step.Instances {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(step, id); err != nil {
					mu.Lock()
					result = multierror.Append(result, err)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if merr, ok := result.(*multierror.Error); ok {
		sort.Slice(merr.Errors, func(i, j int) bool { return merr.Errors[i].Error() < merr.Errors[j].Error() })
	}
	return result
}

// aggregate classifies a workflow failure: recoverable only when every
// underlying failure is.
func aggregate(workflow string, err error) error {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if merr, ok := err.(*multierror.Error); ok {
		errs = merr.Errors
	}
	for _, e := range errs {
		if !fault.IsRecoverable(e) {
			return fault.WrapNonRecoverable(err, "Workflow %s failed", workflow)
		}
	}
	return fault.WrapRecoverable(err, "Workflow %s failed", workflow)
}
