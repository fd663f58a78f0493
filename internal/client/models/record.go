// Package models defines the syncable record types and the sync metadata that
// drives reconciliation between the local store and the remote API.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vmartynov/offsync/internal/common"
)

// Kind classifies a business entity.
type Kind string

const (
	KindHero     Kind = "hero"
	KindStory    Kind = "story"
	KindFeedback Kind = "feedback"
)

// Kinds lists every entity kind in the fixed order sync cycles process them,
// derived from the shared list the server routes by.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(common.RecordKinds))
	for _, k := range common.RecordKinds {
		kinds = append(kinds, Kind(k))
	}
	return kinds
}

// SyncStatus is the authoritative marker driving all sync decisions.
// Exactly one value applies to a record at any time.
type SyncStatus string

const (
	StatusSynced        SyncStatus = "synced"
	StatusPendingCreate SyncStatus = "pending_create"
	StatusPendingUpdate SyncStatus = "pending_update"
	StatusPendingDelete SyncStatus = "pending_delete"
	StatusFailed        SyncStatus = "failed"
	StatusConflict      SyncStatus = "conflict"
)

// Op names the remote operation a record is waiting on. It is retained while
// the record sits in StatusFailed so a later cycle knows what to retry.
type Op string

const (
	OpNone   Op = ""
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Fields is the opaque business payload of a record, stored as JSON.
type Fields map[string]any

// Clone returns a shallow copy of f. A nil map clones to nil.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

var (
	ErrEditAfterDelete  = errors.New("record is marked for deletion, edits rejected")
	ErrInvariantBroken  = errors.New("sync metadata invariant broken")
	ErrUnresolvedStatus = errors.New("record is not in conflict")
)

// Record is a business entity augmented with sync metadata.
//
// LocalID is assigned at creation and never changes; ServerID is empty until
// the record has been created remotely and is never reassigned afterwards.
type Record struct {
	LocalID string
	Kind    Kind

	ServerID string
	Fields   Fields

	// PendingChanges holds field name → new value for every local edit made
	// since the last successful reconciliation.
	PendingChanges Fields

	SyncStatus SyncStatus
	PendingOp  Op

	LastSyncedAt    *time.Time
	ServerUpdatedAt *time.Time

	LastError     string
	Attempts      int
	NextAttemptAt *time.Time

	// ClientKey is the idempotency key presented on create requests. It is
	// generated once and reused on every retry of the same record, so a create
	// that fails mid-request can never mint two server identities.
	ClientKey string

	// RemoteSnapshot holds the remote version observed when the record was
	// parked in StatusConflict, so a deferred resolution can run later without
	// refetching.
	RemoteSnapshot   Fields
	RemoteSnapshotAt *time.Time
}

// NewRecord builds a local-only record in StatusPendingCreate. Every field is
// considered a pending change until the first successful push.
func NewRecord(kind Kind, fields Fields) *Record {
	return &Record{
		LocalID:        uuid.NewString(),
		Kind:           kind,
		Fields:         fields.Clone(),
		PendingChanges: fields.Clone(),
		SyncStatus:     StatusPendingCreate,
		PendingOp:      OpCreate,
		ClientKey:      uuid.NewString(),
	}
}

// NewRemoteRecord builds a local record seeded from a remote version, already
// in StatusSynced. Used by the pull phase for records first seen remotely.
func NewRemoteRecord(kind Kind, serverID string, fields Fields, serverUpdatedAt, now time.Time) *Record {
	r := &Record{
		LocalID:    uuid.NewString(),
		Kind:       kind,
		ServerID:   serverID,
		Fields:     fields.Clone(),
		SyncStatus: StatusSynced,
		ClientKey:  uuid.NewString(),
	}
	r.ServerUpdatedAt = &serverUpdatedAt
	r.LastSyncedAt = &now
	return r
}

// ApplyEdit records a local optimistic edit: business fields are overwritten
// immediately and the change set accumulates for the next push. Records marked
// for deletion reject further edits.
func (r *Record) ApplyEdit(changes Fields) error {
	if r.SyncStatus == StatusPendingDelete {
		return ErrEditAfterDelete
	}
	if r.Fields == nil {
		r.Fields = Fields{}
	}
	if r.PendingChanges == nil {
		r.PendingChanges = Fields{}
	}
	for k, v := range changes {
		r.Fields[k] = v
		r.PendingChanges[k] = v
	}

	switch r.SyncStatus {
	case StatusSynced:
		r.SyncStatus = StatusPendingUpdate
		r.PendingOp = OpUpdate
	case StatusFailed:
		// A failed create stays a create; anything else becomes an update.
		if r.PendingOp != OpCreate {
			r.SyncStatus = StatusPendingUpdate
			r.PendingOp = OpUpdate
		}
	}
	return nil
}

// MarkDeleted transitions the record into its tombstone state. Returns true
// if the record never reached the server and can simply be erased locally.
func (r *Record) MarkDeleted() (eraseLocally bool) {
	if r.ServerID == "" {
		return true
	}
	r.SyncStatus = StatusPendingDelete
	r.PendingOp = OpDelete
	r.PendingChanges = nil
	return false
}

// MarkSynced records a successful reconciliation with the server.
func (r *Record) MarkSynced(serverID string, serverUpdatedAt, now time.Time) {
	if r.ServerID == "" {
		r.ServerID = serverID
	}
	r.SyncStatus = StatusSynced
	r.PendingOp = OpNone
	r.PendingChanges = nil
	r.ServerUpdatedAt = &serverUpdatedAt
	r.LastSyncedAt = &now
	r.LastError = ""
	r.Attempts = 0
	r.NextAttemptAt = nil
	r.RemoteSnapshot = nil
	r.RemoteSnapshotAt = nil
}

// MarkFailed records a push failure. The pending operation is preserved so the
// next cycle can retry; nextAttempt gates when the retry becomes eligible.
func (r *Record) MarkFailed(cause string, nextAttempt *time.Time) {
	r.SyncStatus = StatusFailed
	r.LastError = cause
	r.Attempts++
	r.NextAttemptAt = nextAttempt
}

// MarkConflict parks the record with the observed remote version attached.
func (r *Record) MarkConflict(remote Fields, remoteUpdatedAt time.Time) {
	r.SyncStatus = StatusConflict
	r.RemoteSnapshot = remote.Clone()
	r.RemoteSnapshotAt = &remoteUpdatedAt
}

// RetryDue reports whether a failed record is eligible for another attempt.
func (r *Record) RetryDue(now time.Time, maxAttempts int) bool {
	if r.SyncStatus != StatusFailed {
		return false
	}
	if r.Attempts >= maxAttempts {
		return false
	}
	return r.NextAttemptAt == nil || !r.NextAttemptAt.After(now)
}

// Validate checks the metadata invariants. It is called before every save in
// the record store, so a broken transition never reaches disk.
func (r *Record) Validate() error {
	if r.LocalID == "" {
		return fmt.Errorf("%w: empty local id", ErrInvariantBroken)
	}
	if r.ServerID == "" {
		switch r.SyncStatus {
		case StatusPendingCreate:
		case StatusFailed:
			if r.PendingOp != OpCreate {
				return fmt.Errorf("%w: no server id but pending op %q", ErrInvariantBroken, r.PendingOp)
			}
		default:
			return fmt.Errorf("%w: no server id but status %q", ErrInvariantBroken, r.SyncStatus)
		}
	}
	if r.SyncStatus == StatusSynced {
		if len(r.PendingChanges) > 0 {
			return fmt.Errorf("%w: synced record with pending changes", ErrInvariantBroken)
		}
		if r.LastError != "" {
			return fmt.Errorf("%w: synced record with last error", ErrInvariantBroken)
		}
	}
	if r.SyncStatus == StatusConflict && r.RemoteSnapshotAt == nil {
		return fmt.Errorf("%w: conflict without remote snapshot", ErrInvariantBroken)
	}
	return nil
}
