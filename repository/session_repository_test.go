package repository

import (
	"context"
	"errors"
	"testing"

	"emargement/internal/db"
	"emargement/internal/testutil"
	"emargement/models"
)

func TestSessionRepository_CRUD(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "sessionrepo")
	repo := NewSessionRepository(d)
	ctx := context.Background()
	trainer := testutil.SeedUser(t, d, "Tom", "tom@x.com", "password1", "trainer")

	s, err := repo.Create(ctx, &models.Session{Title: "Go basics", Date: "2024-01-15", TrainerID: trainer})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == 0 || s.Title != "Go basics" || s.Date != "2024-01-15" || s.TrainerID != trainer {
		t.Fatalf("unexpected session: %+v", s)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil || got == nil || got.Title != s.Title {
		t.Fatalf("get: %v %+v", err, got)
	}

	s.Title = "Go advanced"
	s.Date = "2024-02-01"
	upd, err := repo.Update(ctx, s)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Title != "Go advanced" || upd.Date != "2024-02-01" {
		t.Fatalf("update not applied: %+v", upd)
	}

	// Updating with identical values still finds the row
	if _, err := repo.Update(ctx, upd); err != nil {
		t.Fatalf("idempotent update: %v", err)
	}

	if err := repo.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := repo.GetByID(ctx, s.ID)
	if err != nil || gone != nil {
		t.Fatalf("expected session deleted, got %+v err=%v", gone, err)
	}
}

func TestSessionRepository_MissingRows(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "sessionrepo_missing")
	repo := NewSessionRepository(d)
	ctx := context.Background()
	trainer := testutil.SeedUser(t, d, "Tom", "tom@x.com", "password1", "trainer")

	if _, err := repo.Update(ctx, &models.Session{ID: 999, Title: "Ghost session", Date: "2024-01-15", TrainerID: trainer}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Create(ctx, &models.Session{Title: "Orphan session", Date: "2024-01-15", TrainerID: 4242}); !errors.Is(err, db.ErrForeignKey) {
		t.Fatalf("create with unknown trainer: expected ErrForeignKey, got %v", err)
	}
}

func TestSessionRepository_ListWindow(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "sessionrepo_list")
	repo := NewSessionRepository(d)
	ctx := context.Background()
	trainer := testutil.SeedUser(t, d, "Tom", "tom@x.com", "password1", "trainer")

	var ids []int64
	for _, title := range []string{"Session A", "Session B", "Session C", "Session D", "Session E", "Session F", "Session G"} {
		ids = append(ids, testutil.SeedSession(t, d, title, "2024-03-01", trainer))
	}

	page, err := repo.List(ctx, 3, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 3 || page[0].ID != ids[3] || page[2].ID != ids[5] {
		t.Fatalf("unexpected window: %+v", page)
	}

	tail, err := repo.List(ctx, 5, 5)
	if err != nil || len(tail) != 2 {
		t.Fatalf("tail: %v len=%d", err, len(tail))
	}

	empty, err := repo.List(ctx, 5, 50)
	if err != nil || len(empty) != 0 {
		t.Fatalf("past the end: %v len=%d", err, len(empty))
	}
}
