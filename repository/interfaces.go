package repository

import (
	"context"
	"errors"

	"emargement/models"
)

// ErrNotFound is returned by mutations that target a row that does not exist.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("repository: not found")

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, name, email, passwordHash string, role models.Role) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// SessionRepositoryI defines operations on Session entities.
type SessionRepositoryI interface {
	Create(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByID(ctx context.Context, id int64) (*models.Session, error)
	List(ctx context.Context, limit, offset int) ([]models.Session, error)
	Update(ctx context.Context, s *models.Session) (*models.Session, error)
	Delete(ctx context.Context, id int64) error
}

// AttendanceRepositoryI defines operations on attendance records.
type AttendanceRepositoryI interface {
	Record(ctx context.Context, sessionID, studentID int64) (*models.Attendance, error)
	ListAttendees(ctx context.Context, sessionID int64) ([]models.User, error)
}
