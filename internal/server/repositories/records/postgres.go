// Package records provides server-side record persistence: the PostgreSQL
// repository used in production and an in-memory one used in tests.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/dbx"
	"github.com/vmartynov/offsync/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithinTx runs fn against a repository bound to a single transaction. A
// repository already inside a transaction runs fn on itself.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(Repository) error) error {
	db, ok := r.db.(*sql.DB)
	if !ok {
		return fn(r)
	}
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(NewPostgresRepository(tx))
	})
}

func marshalFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.Record) (*models.Record, error) {
	fields, err := marshalFields(rec.Fields)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO records (user_id, kind, fields, client_key)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		rec.UserID, rec.Kind, fields, rec.ClientKey).Scan(&rec.ID, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Record, error) {
	rec := &models.Record{}
	var fields []byte

	err := row.Scan(&rec.ID, &rec.UserID, &rec.Kind, &fields, &rec.UpdatedAt, &rec.ClientKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, kind string, id int64) (*models.Record, error) {
	query :=
		`SELECT id, user_id, kind, fields, updated_at, client_key FROM records
		 WHERE user_id = $1 AND kind = $2 AND id = $3
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, kind, id))
}

func (r *PostgresRepository) GetByClientKey(ctx context.Context, userID, kind, clientKey string) (*models.Record, error) {
	query :=
		`SELECT id, user_id, kind, fields, updated_at, client_key FROM records
		 WHERE user_id = $1 AND kind = $2 AND client_key = $3
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, kind, clientKey))
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record) (*models.Record, error) {
	fields, err := marshalFields(rec.Fields)
	if err != nil {
		return nil, err
	}

	query :=
		`UPDATE records SET fields = $1, updated_at = now()
		 WHERE user_id = $2 AND kind = $3 AND id = $4
		 RETURNING updated_at
		 `

	err = r.db.QueryRowContext(ctx, query, fields, rec.UserID, rec.Kind, rec.ID).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, kind string, id int64) error {
	query := `DELETE FROM records WHERE user_id = $1 AND kind = $2 AND id = $3`

	if _, err := r.db.ExecContext(ctx, query, userID, kind, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, userID, kind string, updatedSince *time.Time, limit, offset int) ([]*models.Record, error) {
	query :=
		`SELECT id, user_id, kind, fields, updated_at, client_key FROM records
		 WHERE user_id = $1 AND kind = $2 AND ($3::timestamptz IS NULL OR updated_at > $3)
		 ORDER BY updated_at, id
		 LIMIT $4 OFFSET $5
		 `

	var since any
	if updatedSince != nil {
		since = *updatedSince
	}

	rows, err := r.db.QueryContext(ctx, query, userID, kind, since, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec := &models.Record{}
		var fields []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Kind, &fields, &rec.UpdatedAt, &rec.ClientKey); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields: %w", err)
		}
		result = append(result, rec)
	}

	return result, rows.Err()
}
