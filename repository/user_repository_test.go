package repository

import (
	"context"
	"errors"
	"testing"

	"emargement/internal/db"
	"emargement/internal/testutil"
	"emargement/models"
)

func TestUserRepository_CreateAndLookups(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "userrepo")
	repo := NewUserRepository(d)
	ctx := context.Background()

	// Create
	u, err := repo.Create(ctx, "Ann", "Ann@X.com", "hash", models.RoleStudent)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == 0 || u.Name != "Ann" || u.Email != "ann@x.com" || u.Role != models.RoleStudent {
		t.Fatalf("unexpected created user: %+v", u)
	}
	if u.CreatedAt.IsZero() {
		t.Fatalf("created_at not populated")
	}

	// GetByID
	g, err := repo.GetByID(ctx, u.ID)
	if err != nil || g == nil || g.PasswordHash != "hash" {
		t.Fatalf("get by id: %v %+v", err, g)
	}

	// GetByEmail ignores case
	g2, err := repo.GetByEmail(ctx, "ANN@x.com")
	if err != nil || g2 == nil || g2.ID != u.ID {
		t.Fatalf("get by email: %v %+v", err, g2)
	}

	// Missing rows are (nil, nil)
	none, err := repo.GetByID(ctx, 9999)
	if err != nil || none != nil {
		t.Fatalf("expected no user, got %+v err=%v", none, err)
	}
	none, err = repo.GetByEmail(ctx, "nobody@x.com")
	if err != nil || none != nil {
		t.Fatalf("expected no user, got %+v err=%v", none, err)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "userrepo_dup")
	repo := NewUserRepository(d)
	ctx := context.Background()

	if _, err := repo.Create(ctx, "Tom", "tom@x.com", "h", models.RoleTrainer); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := repo.Create(ctx, "Tommy", "TOM@x.com", "h", models.RoleStudent)
	if !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}
