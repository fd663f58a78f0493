package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/server/repositories/records"
)

func setupRecordService(t *testing.T) (*RecordService, *records.MemoryRepository) {
	t.Helper()
	repo := records.NewMemoryRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	return NewRecordService(repo), repo
}

func TestRecordService_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupRecordService(t)

	first, err := svc.Create(ctx, "u1", "hero", "key-1", map[string]any{"name": "a"})
	require.NoError(t, err)

	replay, err := svc.Create(ctx, "u1", "hero", "key-1", map[string]any{"name": "a"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assert.True(t, first.UpdatedAt.Equal(replay.UpdatedAt))

	// A different key mints a new identity.
	other, err := svc.Create(ctx, "u1", "hero", "key-2", map[string]any{"name": "b"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestRecordService_KeylessCreatesNeverCollide(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupRecordService(t)

	a, err := svc.Create(ctx, "u1", "hero", "", map[string]any{"name": "a"})
	require.NoError(t, err)

	b, err := svc.Create(ctx, "u1", "hero", "", map[string]any{"name": "b"})
	require.NoError(t, err)

	// An empty key is not an identity: each keyless create is a new record.
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "a", a.Fields["name"])
	assert.Equal(t, "b", b.Fields["name"])
}

func TestRecordService_UpdatePrecondition(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupRecordService(t)

	rec, err := svc.Create(ctx, "u1", "hero", "k", map[string]any{"name": "a", "missions": 1})
	require.NoError(t, err)
	baseline := rec.UpdatedAt

	// Matching precondition: accepted, changed fields merged in.
	updated, err := svc.Update(ctx, "u1", "hero", rec.ID, map[string]any{"name": "b"}, &baseline)
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Fields["name"])
	assert.Equal(t, 1, updated.Fields["missions"])
	assert.True(t, updated.UpdatedAt.After(baseline))

	// Stale precondition: rejected with the current version attached.
	_, err = svc.Update(ctx, "u1", "hero", rec.ID, map[string]any{"name": "c"}, &baseline)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "b", conflict.Current.Fields["name"])

	// Nil precondition overwrites unconditionally.
	forced, err := svc.Update(ctx, "u1", "hero", rec.ID, map[string]any{"name": "c"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "c", forced.Fields["name"])
}

func TestRecordService_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupRecordService(t)

	_, err := svc.Update(ctx, "u1", "hero", 99, map[string]any{"name": "x"}, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRecordService_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupRecordService(t)

	rec, err := svc.Create(ctx, "u1", "hero", "k", map[string]any{"name": "a"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u1", "hero", rec.ID))
	require.NoError(t, svc.Delete(ctx, "u1", "hero", rec.ID))

	_, err = svc.Update(ctx, "u1", "hero", rec.ID, nil, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRecordService_UserScoping(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupRecordService(t)

	rec, err := svc.Create(ctx, "u1", "hero", "k", map[string]any{"name": "a"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "u2", "hero", rec.ID, map[string]any{"name": "hijack"}, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	rows, _, err := svc.List(ctx, "u2", "hero", nil, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRecordService_ListPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupRecordService(t)

	var cutoff time.Time
	for i := 0; i < 5; i++ {
		rec, err := svc.Create(ctx, "u1", "story", "", map[string]any{"n": i})
		require.NoError(t, err)
		if i == 1 {
			cutoff = rec.UpdatedAt
		}
	}

	page1, next, err := svc.List(ctx, "u1", "story", nil, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)
	assert.Equal(t, 2, next)

	page2, next, err := svc.List(ctx, "u1", "story", nil, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.Equal(t, 3, next)

	page3, next, err := svc.List(ctx, "u1", "story", nil, 3, 2)
	require.NoError(t, err)
	assert.Len(t, page3, 1)
	assert.Equal(t, 0, next)

	// updated_since is an exclusive lower bound.
	since, next, err := svc.List(ctx, "u1", "story", &cutoff, 1, 10)
	require.NoError(t, err)
	assert.Len(t, since, 3)
	assert.Equal(t, 0, next)
}
