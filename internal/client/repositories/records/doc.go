// Package records implements the local record store: a SQLite-backed
// repository holding business fields together with the sync metadata that
// the engine reads and writes during reconciliation.
package records
