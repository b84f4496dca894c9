// Package params holds resource parameters, per-call keyword arguments and
// the resolver that merges node properties, persisted instance state and call
// overrides into the effective configuration of an operation.
package params
