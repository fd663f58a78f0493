package records

import (
	"context"
	"time"

	"github.com/vmartynov/offsync/internal/client/models"
)

// Repository describes the persistence operations the sync engine and the
// local mutation path need from the record store. Implementations are backed
// by a local SQLite database; every operation is individually atomic.
type Repository interface {
	// Save upserts a record by LocalID after validating its sync metadata.
	Save(ctx context.Context, r *models.Record) error

	// Get returns a record by its local identifier.
	Get(ctx context.Context, localID string) (*models.Record, error)

	// GetByServerID returns the record of the given kind carrying serverID,
	// or common.ErrorNotFound if no local record shares that identity.
	GetByServerID(ctx context.Context, kind models.Kind, serverID string) (*models.Record, error)

	// List returns all records of a kind, tombstones included.
	List(ctx context.Context, kind models.Kind) ([]*models.Record, error)

	// ListByStatus returns records of a kind in any of the given statuses.
	ListByStatus(ctx context.Context, kind models.Kind, statuses ...models.SyncStatus) ([]*models.Record, error)

	// Delete erases a record entirely (confirmed remote deletions and
	// never-synced local deletions).
	Delete(ctx context.Context, localID string) error

	// LatestSyncedAt returns the newest ServerUpdatedAt across all records of
	// a kind, used as the pull cursor. Nil when nothing has ever synced.
	LatestSyncedAt(ctx context.Context, kind models.Kind) (*time.Time, error)
}
