package records

import (
	"context"
	"time"

	"github.com/vmartynov/offsync/internal/server/models"
)

type Repository interface {
	// WithinTx runs fn against a repository whose statements share one
	// transaction, committing when fn returns nil and rolling back otherwise.
	// Read-modify-write sequences (idempotency replay, precondition checks)
	// go through it so no concurrent writer can slip between the statements.
	WithinTx(ctx context.Context, fn func(Repository) error) error

	Create(ctx context.Context, rec *models.Record) (*models.Record, error)
	GetByID(ctx context.Context, userID, kind string, id int64) (*models.Record, error)
	GetByClientKey(ctx context.Context, userID, kind, clientKey string) (*models.Record, error)

	// Update overwrites fields and stamps a fresh updated_at, returning the
	// stored result.
	Update(ctx context.Context, rec *models.Record) (*models.Record, error)

	Delete(ctx context.Context, userID, kind string, id int64) error

	// List returns records ordered by updated_at ascending, optionally
	// bounded below (exclusive) by updatedSince.
	List(ctx context.Context, userID, kind string, updatedSince *time.Time, limit, offset int) ([]*models.Record, error)
}
