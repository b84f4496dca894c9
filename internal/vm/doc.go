// Package vm implements the domain resource kind.
//
// The operations follow the lifecycle protocol of the reconcile package:
//   - Create: resolve and persist params only; the domain is defined later
//   - Configure: define the domain (or bind an external one)
//   - Start, Stop, Suspend, Resume: bounded power state convergence
//   - Reboot, Update: single calls against a bound domain
//   - Delete: purge snapshots leaves first, destroy, undefine
//   - SnapshotCreate, SnapshotApply, SnapshotDelete: native snapshots in
//     incremental mode, XML files or saved state (full_dump) otherwise
//   - Performance: sample CPU and memory usage into the instance stat
//
// Starting a domain also runs network discovery, which copies the interface
// addresses reported by the hypervisor into params.networks and records the
// first IPv4 address as the instance ip.
//
// Full dumps save the domain to a file and restore it immediately. The
// domain is stopped and resumed by the save, so creating such a backup is a
// side-effecting operation rather than a pure snapshot.
package vm
