package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeLayout = "2006-01-02 15:04:05.000000"

// ErrNotFound is returned for unknown or purged drafts.
var ErrNotFound = errors.New("booking draft not found")

// Store keeps drafts between wizard steps.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get loads a draft by id.
func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	var (
		d         Draft
		data      string
		createdAt string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, step, data_json, created_at, updated_at
		FROM booking_drafts
		WHERE id = ?
	`, id).Scan(&d.ID, &d.Step, &data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query booking draft: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("decode booking draft: %w", err)
	}
	if d.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &d, nil
}

// Save inserts or updates a draft, assigning an id to new ones.
func (s *Store) Save(ctx context.Context, d *Draft) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode booking draft: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO booking_drafts (id, step, data_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			step = excluded.step,
			data_json = excluded.data_json,
			updated_at = excluded.updated_at
	`, d.ID, int(d.Step), string(data), d.CreatedAt.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save booking draft: %w", err)
	}
	return nil
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM booking_drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete booking draft: %w", err)
	}
	return nil
}

// PurgeBefore deletes drafts last touched before cutoff.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM booking_drafts WHERE updated_at < ?
	`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("purge booking drafts: %w", err)
	}
	return result.RowsAffected()
}
