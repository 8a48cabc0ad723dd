// Package scheduler runs taskping's named recurring jobs.
//
// # Model
//
// Each job is registered once at startup under a stable name with one or
// more triggers (fixed interval and/or daily HH:MM, both evaluated in the
// configured timezone). A firing executes the job body on its own goroutine
// with a per-job timeout.
//
// # Overlap
//
// Two bodies of the same job never run concurrently: a firing that arrives
// while the previous run is still executing is recorded on the descriptor as
// a skip, distinct from success or failure. Bodies of different jobs run
// concurrently without coordination.
//
// # Lifecycle
//
// Start arms all triggers; Stop disarms them immediately, then waits a
// bounded grace for in-flight bodies before cancelling their contexts. A
// restart resets all run history; descriptors are not persisted.
package scheduler
