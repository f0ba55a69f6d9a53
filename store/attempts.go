package store

import (
	"context"
	"time"
)

// Attempt is one extraction attempt recorded for diagnostics.
type Attempt struct {
	ID          string `json:"id"`
	GoodsID     string `json:"goods_id,omitempty"`
	PageURL     string `json:"page_url"`
	Attempt     int    `json:"attempt"`
	Strategy    string `json:"strategy,omitempty"`
	Success     bool   `json:"success"`
	ErrorClass  string `json:"error_class,omitempty"`
	FieldCount  int    `json:"field_count"`
	SampleCount int    `json:"sample_count"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	CreatedAt   int64  `json:"created_at"`
}

// InsertAttempt records one extraction attempt.
func (s *Store) InsertAttempt(ctx context.Context, a *Attempt) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO attempt_log (id, goods_id, page_url, attempt, strategy, success,
		                         error_class, field_count, sample_count, elapsed_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.GoodsID, a.PageURL, a.Attempt, a.Strategy, a.Success,
		a.ErrorClass, a.FieldCount, a.SampleCount, a.ElapsedMS, a.CreatedAt,
	)
	return err
}

// RecentAttempts returns the latest N attempt records.
func (s *Store) RecentAttempts(ctx context.Context, limit int) ([]*Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, goods_id, page_url, attempt, strategy, success,
		       error_class, field_count, sample_count, elapsed_ms, created_at
		FROM attempt_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a := &Attempt{}
		if err := rows.Scan(&a.ID, &a.GoodsID, &a.PageURL, &a.Attempt, &a.Strategy,
			&a.Success, &a.ErrorClass, &a.FieldCount, &a.SampleCount,
			&a.ElapsedMS, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
