package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"emargement/internal/db"
	"emargement/models"
)

// SessionRepository persists course sessions.
type SessionRepository struct {
	db *db.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(d *db.DB) *SessionRepository {
	return &SessionRepository{db: d}
}

const sessionColumns = `id, title, session_date, trainer_id, created_at`

// Create inserts a session and returns it as stored. A trainer id with no
// matching user yields an error matching db.ErrForeignKey.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil {
		return nil, errors.New("session is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	id, err := r.db.Insert(ctx, `INSERT INTO sessions (title, session_date, trainer_id) VALUES (?, ?, ?)`,
		s.Title, s.Date, s.TrainerID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	created, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("created session not found: id=%d", id)
	}
	return created, nil
}

// GetByID fetches a session by its ID. A missing session is (nil, nil).
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s models.Session
	err := r.db.QueryRow(ctx, []any{&s.ID, &s.Title, &s.Date, &s.TrainerID, &s.CreatedAt},
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// List returns a window of sessions ordered by id.
func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := make([]models.Session, 0, limit)
	err := r.db.Select(ctx, func(rows *sql.Rows) error {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Date, &s.TrainerID, &s.CreatedAt); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	}, `SELECT `+sessionColumns+` FROM sessions ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites title, date and trainer of an existing session.
// ErrNotFound is returned when no session has the given id.
func (r *SessionRepository) Update(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil {
		return nil, errors.New("session is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.Exec(ctx, `UPDATE sessions SET title = ?, session_date = ?, trainer_id = ? WHERE id = ?`,
		s.Title, s.Date, s.TrainerID, s.ID)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, s.ID)
}

// Delete removes a session and, through the cascade, its attendance records.
// ErrNotFound is returned when nothing was deleted.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
