// Package hypervisor defines the hypervisor capability the reconcilers drive.
//
// The interfaces cover exactly the calls the domain, network, pool and volume
// lifecycles need: lookup by name, define/create from XML, power transitions,
// snapshots, save/restore, DHCP leases and volume streaming. The production
// implementation lives in internal/libvirt; tests use internal/hypervisor/hvtest.
//
// Lookups fail with an error wrapping ErrNotFound when the object does not
// exist. Callers that need to branch on that use Classify to obtain a
// Result with a Found, NotFound or Failed outcome.
package hypervisor
