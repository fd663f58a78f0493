// Package sync contains the offline-first synchronization core: the engine
// running push/pull cycles against the remote API, the conflict resolver, the
// retry policy, and the scheduler that guarantees at most one cycle in flight.
//
// The cycle runs four ordered phases per entity kind: push creates, push
// updates, push deletes, then pull and reconcile. Records are processed
// independently within a phase; one record's failure never aborts the others.
// All sync-status transitions are owned by this package while a cycle runs;
// the UI-facing mutation path only ever writes business fields and the
// pending-entry transitions (see the services package).
package sync
