// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"creator-match/internal/models"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS analysis_records (
	id          UUID PRIMARY KEY,
	fingerprint TEXT        NOT NULL,
	profile     JSONB       NOT NULL,
	matches     JSONB       NOT NULL,
	stats       JSONB       NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_records_fingerprint ON analysis_records (fingerprint, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_records_expires_at ON analysis_records (expires_at);`

// PostgresStore keeps analysis records in the analysis_records table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, recordsSchema); err != nil {
		return fmt.Errorf("ensure analysis_records schema: %w", err)
	}
	return nil
}

// Save inserts rec. Saving an id twice keeps the first record.
func (s *PostgresStore) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	matches, err := json.Marshal(rec.Matches)
	if err != nil {
		return fmt.Errorf("encode matches: %w", err)
	}
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_records (id, fingerprint, profile, matches, stats, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Fingerprint, profile, matches, stats, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert analysis record: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error) {
	var (
		rec                     models.AnalysisRecord
		profile, matches, stats []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, profile, matches, stats, created_at, expires_at
		FROM analysis_records
		WHERE fingerprint = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`, fingerprint, s.now().UTC()).Scan(
		&rec.ID, &rec.Fingerprint,
		&profile, &matches, &stats,
		&rec.CreatedAt, &rec.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load analysis record: %w", err)
	}
	if err := json.Unmarshal(profile, &rec.Profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := json.Unmarshal(matches, &rec.Matches); err != nil {
		return nil, fmt.Errorf("decode matches: %w", err)
	}
	if err := json.Unmarshal(stats, &rec.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return &rec, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_records WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}
	return res.RowsAffected()
}
