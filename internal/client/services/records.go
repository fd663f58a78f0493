// Package services holds the client-side application services: local record
// mutations that update sync metadata and nudge the scheduler, entirely
// offline-capable.
package services

import (
	"context"
	"fmt"

	"github.com/vmartynov/offsync/internal/client/models"
	"github.com/vmartynov/offsync/internal/client/repositories/records"
)

// Requester is the scheduler surface mutations poke after a local write. A
// nil Requester disables the nudge; mutations remain purely local either way.
type Requester interface {
	Request()
}

type RecordService interface {
	List(ctx context.Context, kind models.Kind) ([]*models.Record, error)
	Get(ctx context.Context, localID string) (*models.Record, error)
	Add(ctx context.Context, kind models.Kind, fields models.Fields) (*models.Record, error)
	Edit(ctx context.Context, localID string, changes models.Fields) (*models.Record, error)
	Delete(ctx context.Context, localID string) error
	Retry(ctx context.Context, localID string) error
	Conflicts(ctx context.Context) ([]*models.Record, error)
	Failed(ctx context.Context) ([]*models.Record, error)
}

type recordService struct {
	repo      records.Repository
	scheduler Requester
}

func NewRecordService(repo records.Repository, scheduler Requester) RecordService {
	return &recordService{repo: repo, scheduler: scheduler}
}

func (s *recordService) nudge() {
	if s.scheduler != nil {
		s.scheduler.Request()
	}
}

func (s *recordService) List(ctx context.Context, kind models.Kind) ([]*models.Record, error) {
	rows, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	return rows, nil
}

func (s *recordService) Get(ctx context.Context, localID string) (*models.Record, error) {
	rec, err := s.repo.Get(ctx, localID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving record: %w", err)
	}
	return rec, nil
}

func (s *recordService) Add(ctx context.Context, kind models.Kind, fields models.Fields) (*models.Record, error) {
	rec := models.NewRecord(kind, fields)
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("error saving record: %w", err)
	}
	s.nudge()
	return rec, nil
}

func (s *recordService) Edit(ctx context.Context, localID string, changes models.Fields) (*models.Record, error) {
	rec, err := s.repo.Get(ctx, localID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving record: %w", err)
	}

	if err := rec.ApplyEdit(changes); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("error saving record: %w", err)
	}
	s.nudge()
	return rec, nil
}

// Delete marks the record for remote deletion, or erases it immediately when
// it never reached the server.
func (s *recordService) Delete(ctx context.Context, localID string) error {
	rec, err := s.repo.Get(ctx, localID)
	if err != nil {
		return fmt.Errorf("error retrieving record: %w", err)
	}

	if eraseLocally := rec.MarkDeleted(); eraseLocally {
		if err := s.repo.Delete(ctx, localID); err != nil {
			return fmt.Errorf("error deleting record: %w", err)
		}
		return nil
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("error saving record: %w", err)
	}
	s.nudge()
	return nil
}

// Retry reopens the retry gate of a failed record so the next cycle attempts
// it immediately, regardless of exhausted attempts.
func (s *recordService) Retry(ctx context.Context, localID string) error {
	rec, err := s.repo.Get(ctx, localID)
	if err != nil {
		return fmt.Errorf("error retrieving record: %w", err)
	}

	if rec.SyncStatus != models.StatusFailed {
		return models.ErrUnresolvedStatus
	}

	rec.Attempts = 0
	rec.NextAttemptAt = nil
	if err := s.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("error saving record: %w", err)
	}
	s.nudge()
	return nil
}

func (s *recordService) Conflicts(ctx context.Context) ([]*models.Record, error) {
	return s.listByStatus(ctx, models.StatusConflict)
}

func (s *recordService) Failed(ctx context.Context) ([]*models.Record, error) {
	return s.listByStatus(ctx, models.StatusFailed)
}

func (s *recordService) listByStatus(ctx context.Context, status models.SyncStatus) ([]*models.Record, error) {
	var out []*models.Record
	for _, kind := range models.Kinds() {
		rows, err := s.repo.ListByStatus(ctx, kind, status)
		if err != nil {
			return nil, fmt.Errorf("error listing records: %w", err)
		}
		out = append(out, rows...)
	}
	return out, nil
}
