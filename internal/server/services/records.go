// Package services contains server-side business logic: account management
// and the authoritative record store the sync protocol runs against.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/server/models"
	"github.com/vmartynov/offsync/internal/server/repositories/records"
)

// ConflictError reports a rejected write whose precondition was stale. It
// carries the current server version so the transport can return it to the
// client in the same round trip.
type ConflictError struct {
	Current *models.Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("precondition failed: record %d updated at %s", e.Current.ID, e.Current.UpdatedAt)
}

// RecordService owns the authoritative record collection of one deployment.
// All operations are scoped to the authenticated user.
type RecordService struct {
	repo records.Repository
}

func NewRecordService(repo records.Repository) *RecordService {
	return &RecordService{repo: repo}
}

// Create stores a new record. A non-empty clientKey makes the operation
// idempotent: replaying the same key returns the originally created record
// without minting a second identity.
func (s *RecordService) Create(ctx context.Context, userID, kind, clientKey string, fields map[string]any) (*models.Record, error) {
	var out *models.Record
	err := s.repo.WithinTx(ctx, func(repo records.Repository) error {
		if clientKey != "" {
			existing, err := repo.GetByClientKey(ctx, userID, kind, clientKey)
			if err == nil {
				out = existing
				return nil
			}
			if !errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("error checking idempotency key: %w", err)
			}
		}

		rec := &models.Record{UserID: userID, Kind: kind, Fields: fields, ClientKey: clientKey}
		created, err := repo.Create(ctx, rec)
		if err != nil {
			return fmt.Errorf("error creating record: %w", err)
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies changed fields onto the stored record. A non-nil
// precondition older than the stored update time rejects the write with
// *ConflictError carrying the current version; a nil precondition overwrites
// unconditionally.
func (s *RecordService) Update(ctx context.Context, userID, kind string, id int64, changes map[string]any, precondition *time.Time) (*models.Record, error) {
	var out *models.Record
	err := s.repo.WithinTx(ctx, func(repo records.Repository) error {
		rec, err := repo.GetByID(ctx, userID, kind, id)
		if err != nil {
			return err
		}

		if precondition != nil && rec.UpdatedAt.After(*precondition) {
			return &ConflictError{Current: rec}
		}

		if rec.Fields == nil {
			rec.Fields = map[string]any{}
		}
		for k, v := range changes {
			rec.Fields[k] = v
		}

		out, err = repo.Update(ctx, rec)
		if err != nil {
			return fmt.Errorf("error updating record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a record. Deleting an already-absent record succeeds, so
// clients can replay deletes safely.
func (s *RecordService) Delete(ctx context.Context, userID, kind string, id int64) error {
	if err := s.repo.Delete(ctx, userID, kind, id); err != nil {
		return fmt.Errorf("error deleting record: %w", err)
	}
	return nil
}

// List returns one page of records ordered by update time and the next page
// number, or 0 when the listing is exhausted.
func (s *RecordService) List(ctx context.Context, userID, kind string, updatedSince *time.Time, page, perPage int) ([]*models.Record, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 100
	}

	// Fetch one extra row to detect whether another page exists.
	rows, err := s.repo.List(ctx, userID, kind, updatedSince, perPage+1, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing records: %w", err)
	}

	nextPage := 0
	if len(rows) > perPage {
		rows = rows[:perPage]
		nextPage = page + 1
	}
	return rows, nextPage, nil
}
