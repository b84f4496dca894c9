// Package reconcile implements the lifecycle protocol shared by every
// resource kind.
//
// An operation runs with an explicit Op context: the resolved params, the
// owned instance state and a logger. A Reconciler is parameterized by a Kind
// descriptor (lookup, create, handle name, XML description) and provides the
// common steps: scoped connections, external binding, re-entrant lookup,
// render-and-create, idempotent teardown and XML backups. Converge is the
// bounded fixed-interval poll used for power state, pool state and lease
// waits.
//
// Errors are classified with the fault package. Failing to open a
// connection, to find a bound object or to create one is non-recoverable.
package reconcile
