package models

import "time"

// DateLayout is the calendar date format sessions are stored and exchanged in.
const DateLayout = "2006-01-02"

// Session is a course session run by a trainer.
// It maps to the `sessions` table.
type Session struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Date      string    `db:"session_date" json:"date"`
	TrainerID int64     `db:"trainer_id" json:"trainerId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
