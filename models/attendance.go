package models

import "time"

// Attendance records that a student was present at a session.
// Records are append-only and unique per (session, student).
type Attendance struct {
	ID        int64     `db:"id" json:"id"`
	SessionID int64     `db:"session_id" json:"sessionId"`
	StudentID int64     `db:"student_id" json:"studentId"`
	Present   bool      `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
