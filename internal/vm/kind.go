package vm

import (
	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/template"
)

var domains = reconcile.New(reconcile.Kind[hypervisor.Domain]{
	Name:         "domain",
	Template:     template.KindDomain,
	CreateFailed: "Failed to define a domain from an XML definition.",
	Noun:         "servers",
	Lookup: func(c hypervisor.Conn, _ params.Params, name string) (hypervisor.Domain, error) {
		return c.LookupDomain(name)
	},
	Create: func(c hypervisor.Conn, _ params.Params, xml string) (hypervisor.Domain, error) {
		return c.DefineDomain(xml)
	},
	Handle:  func(d hypervisor.Domain) string { return d.Name() },
	XMLDesc: func(d hypervisor.Domain) (string, error) { return d.XMLDesc() },
})

// withDomain looks up the bound domain and runs fn with it.
func withDomain(op *reconcile.Op, fn func(c hypervisor.Conn, d hypervisor.Domain) error) error {
	return domains.WithConnection(op, func(c hypervisor.Conn) error {
		d, err := domains.Find(op, c)
		if err != nil {
			return err
		}
		return fn(c, d)
	})
}

func powerState(d hypervisor.Domain) (hypervisor.PowerState, error) {
	s, err := d.State()
	if err != nil {
		return s, fault.WrapNonRecoverable(err, "Failed to get state of the domain %s", d.Name())
	}
	return s, nil
}
