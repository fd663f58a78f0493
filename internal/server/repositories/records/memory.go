package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/server/models"
)

// MemoryRepository is a map-backed Repository used by handler and service
// tests. It mirrors the PostgreSQL semantics, including server-assigned IDs
// and update timestamps.
type MemoryRepository struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	nextID int64
	items  map[int64]*models.Record

	// Now is the timestamp source, overridable in tests.
	Now func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[int64]*models.Record{}, Now: time.Now}
}

// WithinTx serializes multi-statement sequences the way a transaction would.
// There is no rollback; callers only write as their final statement.
func (r *MemoryRepository) WithinTx(ctx context.Context, fn func(Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

func cloneRecord(rec *models.Record) *models.Record {
	out := *rec
	out.Fields = map[string]any{}
	for k, v := range rec.Fields {
		out.Fields[k] = v
	}
	return &out
}

func (r *MemoryRepository) Create(ctx context.Context, rec *models.Record) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rec.ID = r.nextID
	rec.UpdatedAt = r.Now()
	r.items[rec.ID] = cloneRecord(rec)
	return rec, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, userID, kind string, id int64) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.items[id]
	if !ok || rec.UserID != userID || rec.Kind != kind {
		return nil, common.ErrorNotFound
	}
	return cloneRecord(rec), nil
}

func (r *MemoryRepository) GetByClientKey(ctx context.Context, userID, kind, clientKey string) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Empty keys are not identities; keyless records never replay.
	if clientKey == "" {
		return nil, common.ErrorNotFound
	}

	for _, rec := range r.items {
		if rec.UserID == userID && rec.Kind == kind && rec.ClientKey == clientKey {
			return cloneRecord(rec), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) Update(ctx context.Context, rec *models.Record) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[rec.ID]
	if !ok || stored.UserID != rec.UserID || stored.Kind != rec.Kind {
		return nil, common.ErrorNotFound
	}

	rec.UpdatedAt = r.Now()
	rec.ClientKey = stored.ClientKey
	r.items[rec.ID] = cloneRecord(rec)
	return rec, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID, kind string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.items[id]
	if ok && rec.UserID == userID && rec.Kind == kind {
		delete(r.items, id)
	}
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, userID, kind string, updatedSince *time.Time, limit, offset int) ([]*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*models.Record
	for _, rec := range r.items {
		if rec.UserID != userID || rec.Kind != kind {
			continue
		}
		if updatedSince != nil && !rec.UpdatedAt.After(*updatedSince) {
			continue
		}
		all = append(all, cloneRecord(rec))
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].UpdatedAt.Before(all[j].UpdatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
