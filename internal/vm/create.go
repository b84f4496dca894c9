package vm

import (
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
)

// Create only records the merged params. Disks are attached by other nodes
// before configure, so the domain is defined there.
func Create(op *reconcile.Op) error {
	op.Log.Info("create")
	op.Resolve()
	return nil
}

// Configure defines the domain from its rendered definition, binds an
// external domain, or looks up an already defined one.
func Configure(op *reconcile.Op) error {
	op.Log.Info("configure")
	return domains.WithConnection(op, func(c hypervisor.Conn) error {
		applyDefaults(op.Params())
		_, _, err := domains.Provision(op, c)
		return err
	})
}

// applyDefaults fills the template defaults: maximum memory twice the
// current size, qemu domains and a custom CPU.
func applyDefaults(p params.Params) {
	if !p.Truthy("memory_maxsize") && p.Truthy("memory_size") {
		p["memory_maxsize"] = p.Int("memory_size") * 2
	}
	if !p.Truthy("domain_type") {
		p["domain_type"] = "qemu"
	}
	if !p.Truthy("domain_cpu") {
		p["domain_cpu"] = "custom"
	}
}
