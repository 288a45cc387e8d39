package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"emargement/internal/auth"
	"emargement/internal/db"
)

type attendanceRequest struct {
	StudentID *int64 `json:"studentId"`
}

func (h *handler) recordAttendance(c *gin.Context) {
	sessionID, ok := pathID(c)
	if !ok {
		return
	}
	var in attendanceRequest
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		unauthorized(c)
		return
	}
	// Students sign only for themselves.
	if in.StudentID != nil && *in.StudentID != p.ID {
		unauthorized(c)
		return
	}
	ctx := c.Request.Context()

	s, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		h.internalError(c, "get session", err)
		return
	}
	if s == nil {
		notFound(c, "session")
		return
	}

	rec, err := h.Attendance.Record(ctx, sessionID, p.ID)
	switch {
	case errors.Is(err, db.ErrDuplicate):
		conflict(c, "attendance already recorded")
	case errors.Is(err, db.ErrForeignKey):
		notFound(c, "session")
	case err != nil:
		h.internalError(c, "record attendance", err)
	default:
		h.Metrics.AttendanceRecorded(ctx)
		c.JSON(http.StatusOK, rec)
	}
}

func (h *handler) listAttendees(c *gin.Context) {
	sessionID, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	s, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		h.internalError(c, "get session", err)
		return
	}
	if s == nil {
		notFound(c, "session")
		return
	}
	users, err := h.Attendance.ListAttendees(ctx, sessionID)
	if err != nil {
		h.internalError(c, "list attendees", err)
		return
	}
	c.JSON(http.StatusOK, users)
}
