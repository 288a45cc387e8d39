package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"emargement/internal/db"
	"emargement/models"
)

// AttendanceRepository records student presence at sessions.
type AttendanceRepository struct {
	db *db.DB
}

func NewAttendanceRepository(d *db.DB) *AttendanceRepository {
	return &AttendanceRepository{db: d}
}

// Record inserts a present record for the pair. A second record for the same
// pair yields an error matching db.ErrDuplicate; an unknown session or student
// yields db.ErrForeignKey.
func (r *AttendanceRepository) Record(ctx context.Context, sessionID, studentID int64) (*models.Attendance, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	id, err := r.db.Insert(ctx, `INSERT INTO attendance (session_id, student_id, status) VALUES (?, ?, ?)`,
		sessionID, studentID, true)
	if err != nil {
		return nil, fmt.Errorf("record attendance: %w", err)
	}

	var a models.Attendance
	err = r.db.QueryRow(ctx, []any{&a.ID, &a.SessionID, &a.StudentID, &a.Present, &a.CreatedAt},
		`SELECT id, session_id, student_id, status, created_at FROM attendance WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("load attendance %d: %w", id, err)
	}
	return &a, nil
}

// ListAttendees returns the students recorded present at a session, by name.
func (r *AttendanceRepository) ListAttendees(ctx context.Context, sessionID int64) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := []models.User{}
	err := r.db.Select(ctx, func(rows *sql.Rows) error {
		var u models.User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt); err != nil {
			return err
		}
		u.Role = models.Role(role)
		out = append(out, u)
		return nil
	}, `
SELECT u.id, u.name, u.email, u.role, u.created_at
FROM attendance a
JOIN users u ON u.id = a.student_id
WHERE a.session_id = ? AND a.status = ?
ORDER BY u.name, u.id`, sessionID, true)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns how many records exist for a session.
func (r *AttendanceRepository) Count(ctx context.Context, sessionID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	if err := r.db.QueryRow(ctx, []any{&n}, `SELECT COUNT(*) FROM attendance WHERE session_id = ?`, sessionID); err != nil {
		return 0, err
	}
	return n, nil
}
