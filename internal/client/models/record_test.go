package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmartynov/offsync/internal/common"
)

func TestNewRecord_StartsPendingCreate(t *testing.T) {
	r := NewRecord(KindHero, Fields{"name": "Torvald", "power": "ice"})

	assert.NotEmpty(t, r.LocalID)
	assert.NotEmpty(t, r.ClientKey)
	assert.Empty(t, r.ServerID)
	assert.Equal(t, StatusPendingCreate, r.SyncStatus)
	assert.Equal(t, OpCreate, r.PendingOp)
	assert.Equal(t, r.Fields, r.PendingChanges)
	require.NoError(t, r.Validate())
}

func TestApplyEdit_SyncedBecomesPendingUpdate(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(KindHero, Fields{"name": "Torvald"})
	r.MarkSynced("42", now, now)

	require.NoError(t, r.ApplyEdit(Fields{"name": "Torvald II"}))
	assert.Equal(t, StatusPendingUpdate, r.SyncStatus)
	assert.Equal(t, OpUpdate, r.PendingOp)
	assert.Equal(t, Fields{"name": "Torvald II"}, r.PendingChanges)
	assert.Equal(t, "Torvald II", r.Fields["name"])
}

func TestApplyEdit_RejectedAfterDelete(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(KindStory, Fields{"title": "origin"})
	r.MarkSynced("7", now, now)
	assert.False(t, r.MarkDeleted())

	err := r.ApplyEdit(Fields{"title": "rewrite"})
	assert.ErrorIs(t, err, ErrEditAfterDelete)
}

func TestApplyEdit_FailedCreateStaysCreate(t *testing.T) {
	r := NewRecord(KindHero, Fields{"name": "a"})
	r.MarkFailed("rate limited", nil)

	require.NoError(t, r.ApplyEdit(Fields{"name": "b"}))
	assert.Equal(t, StatusFailed, r.SyncStatus)
	assert.Equal(t, OpCreate, r.PendingOp)
	require.NoError(t, r.Validate())
}

func TestMarkDeleted_NeverSyncedIsErasedLocally(t *testing.T) {
	r := NewRecord(KindFeedback, Fields{"message": "hi"})
	assert.True(t, r.MarkDeleted())
}

func TestMarkSynced_ClearsFailureAndConflictState(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(KindHero, Fields{"name": "a"})
	r.MarkFailed("boom", &now)
	r.ServerID = "42"
	r.MarkConflict(Fields{"name": "b"}, now)

	r.MarkSynced("42", now, now)
	assert.Equal(t, StatusSynced, r.SyncStatus)
	assert.Empty(t, r.LastError)
	assert.Zero(t, r.Attempts)
	assert.Nil(t, r.NextAttemptAt)
	assert.Nil(t, r.RemoteSnapshot)
	require.NoError(t, r.Validate())
}

func TestMarkSynced_NeverReassignsServerID(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(KindHero, Fields{"name": "a"})
	r.MarkSynced("42", now, now)
	r.MarkSynced("43", now, now)
	assert.Equal(t, "42", r.ServerID)
}

func TestRetryDue(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	tests := []struct {
		name string
		mod  func(r *Record)
		want bool
	}{
		{"not failed", func(r *Record) { r.SyncStatus = StatusPendingCreate }, false},
		{"due with no gate", func(r *Record) {}, true},
		{"gate in the past", func(r *Record) { r.NextAttemptAt = &earlier }, true},
		{"gate in the future", func(r *Record) { r.NextAttemptAt = &later }, false},
		{"attempts exhausted", func(r *Record) { r.Attempts = 5 }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRecord(KindHero, Fields{"name": "a"})
			r.SyncStatus = StatusFailed
			r.Attempts = 1
			tc.mod(r)
			assert.Equal(t, tc.want, r.RetryDue(now, 5))
		})
	}
}

func TestValidate_Invariants(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		make    func() *Record
		wantErr bool
	}{
		{
			name: "synced without server id",
			make: func() *Record {
				r := NewRecord(KindHero, nil)
				r.SyncStatus = StatusSynced
				r.PendingChanges = nil
				return r
			},
			wantErr: true,
		},
		{
			name: "failed update without server id",
			make: func() *Record {
				r := NewRecord(KindHero, nil)
				r.SyncStatus = StatusFailed
				r.PendingOp = OpUpdate
				return r
			},
			wantErr: true,
		},
		{
			name: "synced with pending changes",
			make: func() *Record {
				r := NewRecord(KindHero, Fields{"name": "a"})
				r.MarkSynced("42", now, now)
				r.PendingChanges = Fields{"name": "b"}
				return r
			},
			wantErr: true,
		},
		{
			name: "conflict without snapshot",
			make: func() *Record {
				r := NewRecord(KindHero, Fields{"name": "a"})
				r.MarkSynced("42", now, now)
				r.SyncStatus = StatusConflict
				return r
			},
			wantErr: true,
		},
		{
			name: "well-formed conflict",
			make: func() *Record {
				r := NewRecord(KindHero, Fields{"name": "a"})
				r.MarkSynced("42", now, now)
				_ = r.ApplyEdit(Fields{"name": "b"})
				r.MarkConflict(Fields{"name": "c"}, now.Add(time.Second))
				return r
			},
			wantErr: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.make().Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvariantBroken)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKinds_MatchServedCollections(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, len(common.RecordKinds))
	for i, name := range common.RecordKinds {
		assert.Equal(t, Kind(name), kinds[i])
	}
}
