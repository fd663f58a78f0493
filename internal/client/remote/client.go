// Package remote defines the narrow contract the sync engine requires from
// the remote authoritative store, the typed error taxonomy every transport
// must map onto, and the HTTP implementation of both.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmartynov/offsync/internal/client/models"
)

// Upstream is a record as the server sees it: a server-assigned identity,
// the server-side update timestamp, and the business fields.
type Upstream struct {
	ServerID  string        `json:"id"`
	UpdatedAt time.Time     `json:"updated_at"`
	Fields    models.Fields `json:"fields"`
}

// ErrorKind classifies a remote failure. Each kind maps deterministically to
// a retry decision; see the sync package's retry policy.
type ErrorKind string

const (
	KindNetworkUnavailable   ErrorKind = "network_unavailable"
	KindTransientServerError ErrorKind = "transient_server_error"
	KindRateLimited          ErrorKind = "rate_limited"
	KindPreconditionFailed   ErrorKind = "precondition_failed"
	KindValidationRejected   ErrorKind = "validation_rejected"
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	KindPermissionDenied     ErrorKind = "permission_denied"
	KindNotFound             ErrorKind = "not_found"
)

// Error is a classified remote failure.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError wraps cause with a classification.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// KindOf extracts the classification from err, or "" if err carries none.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return KindPreconditionFailed
	}
	return ""
}

// PreconditionError is the distinguished conflict signal: the server refused
// an update because its record is newer than the presented precondition. It
// carries the server's current version so the caller can resolve immediately.
type PreconditionError struct {
	Current Upstream
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: server has %s at %s", e.Current.ServerID, e.Current.UpdatedAt)
}

// Pager yields a remote collection page by page. Next returns done=true once
// the sequence is exhausted; callers must tolerate partial delivery and may
// restart the listing from scratch via Client.List.
type Pager interface {
	Next(ctx context.Context) (items []Upstream, done bool, err error)
}

// Client is the minimum remote surface the sync engine requires, per entity
// kind. Authentication is attached by the implementation; the engine only ever
// observes an authentication failure as a non-retryable error kind.
type Client interface {
	// Create stores a new record remotely. clientKey is the idempotency key:
	// replaying the same key must return the originally created record rather
	// than minting a second identity.
	Create(ctx context.Context, kind models.Kind, clientKey string, fields models.Fields) (*Upstream, error)

	// Update applies changed fields to an existing record, guarded by the
	// precondition timestamp. A stale precondition yields *PreconditionError.
	// A zero precondition skips the check (unconditional overwrite).
	Update(ctx context.Context, kind models.Kind, serverID string, changed models.Fields, precondition time.Time) (*Upstream, error)

	// Delete removes a record; deleting an already-absent record succeeds.
	Delete(ctx context.Context, kind models.Kind, serverID string) error

	// List returns the collection ordered by server update time, optionally
	// bounded below by updatedSince.
	List(ctx context.Context, kind models.Kind, updatedSince *time.Time) Pager
}
