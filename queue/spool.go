// CLAUDE:SUMMARY SQLite-backed upload spool with visibility timeouts plus the resty batch uploader draining it.
// Package queue spools collected product records for upload to a remote
// collect API.
//
// Records land in an SQLite spool table and stay there until the
// uploader confirms delivery. Claimed records are invisible to other
// consumers for a configurable duration; if the uploader crashes or the
// upload stalls past the timeout, the record reappears and is retried.
// The spool is pure SQLite, so collection keeps working offline and
// drains once the endpoint is reachable again.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// Record is one spooled upload.
type Record struct {
	ID        string
	Payload   []byte
	VisibleAt time.Time
	CreatedAt time.Time
	Attempts  int
}

// SpoolOptions configures spool behaviour.
type SpoolOptions struct {
	// Visibility is how long a claimed record stays invisible. Default: 30s.
	Visibility time.Duration
	// MaxAttempts limits redeliveries before a record is discarded.
	// 0 means unlimited. Default: 0.
	MaxAttempts int
	Logger      *slog.Logger
}

func (o *SpoolOptions) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Spool is the upload spool handle.
type Spool struct {
	db   *sql.DB
	opts SpoolOptions
}

// NewSpool creates a spool handle. Call EnsureTable once at startup.
func NewSpool(db *sql.DB, opts SpoolOptions) *Spool {
	opts.defaults()
	return &Spool{db: db, opts: opts}
}

// EnsureTable creates the upload_spool table and index if they don't exist.
func (s *Spool) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS upload_spool (
			id          TEXT PRIMARY KEY,
			payload     BLOB,
			visible_at  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_spool_visible ON upload_spool (visible_at);
	`)
	return err
}

// Enqueue inserts a record that is immediately claimable.
func (s *Spool) Enqueue(ctx context.Context, id string, payload []byte) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_spool (id, payload, visible_at, created_at) VALUES (?,?,?,?)`,
		id, payload, now, now,
	)
	return err
}

// ClaimBatch atomically claims up to n visible records, marking them
// invisible for the configured visibility duration. Returns an empty
// (non-nil) slice when nothing is claimable.
func (s *Spool) ClaimBatch(ctx context.Context, n int) ([]*Record, error) {
	now := time.Now()
	hideUntil := now.Add(s.opts.Visibility).UnixMilli()

	rows, err := s.db.QueryContext(ctx, `
		UPDATE upload_spool
		SET visible_at = ?, attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM upload_spool
			WHERE visible_at <= ?
			ORDER BY visible_at ASC
			LIMIT ?
		)
		RETURNING id, payload, visible_at, created_at, attempts`,
		hideUntil, now.UnixMilli(), n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var r Record
		var visAt, creAt int64
		if err := rows.Scan(&r.ID, &r.Payload, &visAt, &creAt, &r.Attempts); err != nil {
			return nil, err
		}
		r.VisibleAt = time.UnixMilli(visAt)
		r.CreatedAt = time.UnixMilli(creAt)
		recs = append(recs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*Record{}
	}
	return recs, nil
}

// Ack deletes a delivered record.
func (s *Spool) Ack(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM upload_spool WHERE id = ?`, id)
	return err
}

// Nack makes a record immediately claimable again.
func (s *Spool) Nack(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE upload_spool SET visible_at = 0 WHERE id = ?`, id)
	return err
}

// Len returns the total number of spooled records (visible + claimed).
func (s *Spool) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM upload_spool`).Scan(&n)
	return n, err
}

// discardExhausted acks a record whose attempt count exceeded the
// limit. Returns true when the record was discarded.
func (s *Spool) discardExhausted(ctx context.Context, r *Record) bool {
	if s.opts.MaxAttempts <= 0 || r.Attempts <= s.opts.MaxAttempts {
		return false
	}
	s.opts.Logger.Warn("queue: record exceeded max attempts, discarding",
		"id", r.ID, "attempts", r.Attempts)
	if err := s.Ack(ctx, r.ID); err != nil && !errors.Is(err, context.Canceled) {
		s.opts.Logger.Warn("queue: discard ack failed", "id", r.ID, "error", err)
	}
	return true
}
