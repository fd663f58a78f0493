package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmartynov/offsync/internal/client/models"
	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `local_id, kind, server_id, fields, pending_changes, sync_status, pending_op,
	last_synced_at, server_updated_at, last_error, attempts, next_attempt_at, client_key,
	remote_snapshot, remote_snapshot_at`

func marshalFields(f models.Fields) (sql.NullString, error) {
	if f == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal fields: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalFields(s sql.NullString) (models.Fields, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var f models.Fields
	if err := json.Unmarshal([]byte(s.String), &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	return f, nil
}

// timeLayout keeps a fixed-width fraction so the TEXT columns sort
// chronologically and MAX() yields the newest timestamp.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func marshalTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func unmarshalTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return &t, nil
}

// Save validates the record's metadata and upserts it by local_id.
func (r *SQLiteRepository) Save(ctx context.Context, rec *models.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	fields, err := marshalFields(rec.Fields)
	if err != nil {
		return err
	}
	if !fields.Valid {
		fields = sql.NullString{String: "{}", Valid: true}
	}
	changes, err := marshalFields(rec.PendingChanges)
	if err != nil {
		return err
	}
	snapshot, err := marshalFields(rec.RemoteSnapshot)
	if err != nil {
		return err
	}

	query := `INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			fields = excluded.fields,
			pending_changes = excluded.pending_changes,
			sync_status = excluded.sync_status,
			pending_op = excluded.pending_op,
			last_synced_at = excluded.last_synced_at,
			server_updated_at = excluded.server_updated_at,
			last_error = excluded.last_error,
			attempts = excluded.attempts,
			next_attempt_at = excluded.next_attempt_at,
			remote_snapshot = excluded.remote_snapshot,
			remote_snapshot_at = excluded.remote_snapshot_at
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.LocalID, string(rec.Kind), rec.ServerID,
		fields.String, changes, string(rec.SyncStatus), string(rec.PendingOp),
		marshalTime(rec.LastSyncedAt), marshalTime(rec.ServerUpdatedAt),
		rec.LastError, rec.Attempts, marshalTime(rec.NextAttemptAt), rec.ClientKey,
		snapshot, marshalTime(rec.RemoteSnapshotAt))
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func scanRecord(s interface{ Scan(dest ...any) error }) (*models.Record, error) {
	var rec models.Record
	var kind, status, op string
	var fields, changes, snapshot sql.NullString
	var syncedAt, updatedAt, nextAt, snapshotAt sql.NullString
	err := s.Scan(&rec.LocalID, &kind, &rec.ServerID, &fields, &changes, &status, &op,
		&syncedAt, &updatedAt, &rec.LastError, &rec.Attempts, &nextAt, &rec.ClientKey,
		&snapshot, &snapshotAt)
	if err != nil {
		return nil, err
	}

	rec.Kind = models.Kind(kind)
	rec.SyncStatus = models.SyncStatus(status)
	rec.PendingOp = models.Op(op)

	if rec.Fields, err = unmarshalFields(fields); err != nil {
		return nil, err
	}
	if rec.PendingChanges, err = unmarshalFields(changes); err != nil {
		return nil, err
	}
	if rec.RemoteSnapshot, err = unmarshalFields(snapshot); err != nil {
		return nil, err
	}
	if rec.LastSyncedAt, err = unmarshalTime(syncedAt); err != nil {
		return nil, err
	}
	if rec.ServerUpdatedAt, err = unmarshalTime(updatedAt); err != nil {
		return nil, err
	}
	if rec.NextAttemptAt, err = unmarshalTime(nextAt); err != nil {
		return nil, err
	}
	if rec.RemoteSnapshotAt, err = unmarshalTime(snapshotAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get returns a record by its local identifier.
func (r *SQLiteRepository) Get(ctx context.Context, localID string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE local_id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return rec, nil
}

// GetByServerID returns the record of the given kind carrying serverID.
func (r *SQLiteRepository) GetByServerID(ctx context.Context, kind models.Kind, serverID string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE kind = ? AND server_id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, string(kind), serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// List returns all records of a kind ordered by local id.
func (r *SQLiteRepository) List(ctx context.Context, kind models.Kind) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE kind = ? ORDER BY local_id`
	return r.queryRecords(ctx, query, string(kind))
}

// ListByStatus returns records of a kind in any of the given statuses.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, kind models.Kind, statuses ...models.SyncStatus) ([]*models.Record, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + recordColumns + ` FROM records WHERE kind = ? AND sync_status IN (?` +
		strings.Repeat(",?", len(statuses)-1) + `) ORDER BY local_id`

	args := make([]any, 0, len(statuses)+1)
	args = append(args, string(kind))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	return r.queryRecords(ctx, query, args...)
}

// Delete erases a record entirely.
func (r *SQLiteRepository) Delete(ctx context.Context, localID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// LatestSyncedAt returns the newest server_updated_at across records of a
// kind. The cursor stays in the server's clock domain so pulls never skip
// records when the local clock runs ahead.
func (r *SQLiteRepository) LatestSyncedAt(ctx context.Context, kind models.Kind) (*time.Time, error) {
	var latest sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(server_updated_at) FROM records WHERE kind = ?`, string(kind)).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to select sync cursor: %w", err)
	}
	return unmarshalTime(latest)
}
