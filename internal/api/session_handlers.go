package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"emargement/internal/db"
	"emargement/models"
	"emargement/repository"
)

const (
	defaultPage = 1
	defaultSize = 5
	maxSize     = 100
)

type sessionRequest struct {
	Title     string `json:"title" binding:"required,min=5"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	TrainerID int64  `json:"trainerId" binding:"required,gt=0"`
}

func (h *handler) listSessions(c *gin.Context) {
	page, ok := queryPositive(c, "page", defaultPage)
	if !ok {
		return
	}
	size, ok := queryPositive(c, "size", defaultSize)
	if !ok {
		return
	}
	if size > maxSize {
		size = maxSize
	}
	if page-1 > (1<<31-1)/size {
		c.JSON(http.StatusOK, []models.Session{})
		return
	}
	list, err := h.Sessions.List(c.Request.Context(), size, (page-1)*size)
	if err != nil {
		h.internalError(c, "list sessions", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) getSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s, err := h.Sessions.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "get session", err)
		return
	}
	if s == nil {
		notFound(c, "session")
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) createSession(c *gin.Context) {
	var in sessionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	if !h.checkTrainer(c, in.TrainerID) {
		return
	}
	s, err := h.Sessions.Create(ctx, &models.Session{Title: in.Title, Date: in.Date, TrainerID: in.TrainerID})
	if err != nil {
		if errors.Is(err, db.ErrForeignKey) {
			invalid(c, fieldError{Field: "trainerId", Message: "must reference an existing trainer"})
			return
		}
		h.internalError(c, "create session", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) updateSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in sessionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	if !h.checkTrainer(c, in.TrainerID) {
		return
	}
	s, err := h.Sessions.Update(ctx, &models.Session{ID: id, Title: in.Title, Date: in.Date, TrainerID: in.TrainerID})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		notFound(c, "session")
	case errors.Is(err, db.ErrForeignKey):
		invalid(c, fieldError{Field: "trainerId", Message: "must reference an existing trainer"})
	case err != nil:
		h.internalError(c, "update session", err)
	case s == nil:
		notFound(c, "session")
	default:
		c.JSON(http.StatusOK, s)
	}
}

func (h *handler) deleteSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.Sessions.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		notFound(c, "session")
		return
	}
	if err != nil {
		h.internalError(c, "delete session", err)
		return
	}
	c.String(http.StatusOK, "Session deleted")
}

// checkTrainer requires id to name an existing trainer before any write.
func (h *handler) checkTrainer(c *gin.Context, id int64) bool {
	u, err := h.Users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "lookup trainer", err)
		return false
	}
	if u == nil || u.Role != models.RoleTrainer {
		invalid(c, fieldError{Field: "trainerId", Message: "must reference an existing trainer"})
		return false
	}
	return true
}

// queryPositive reads a positive integer query parameter, answering 400 when
// it is present but not a positive number.
func queryPositive(c *gin.Context, name string, def int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.String(http.StatusBadRequest, "Invalid query parameter %q", name)
		c.Abort()
		return 0, false
	}
	return n, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}
