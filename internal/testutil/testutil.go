package testutil

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/metadata"

	"emargement/internal/db"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The database is closed through t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *db.DB {
	t.Helper()
	// Shared cache so the migration handle and the pool see the same database.
	d, err := db.Open(context.Background(), db.Config{
		Dialect:        db.SQLite,
		DSN:            db.SQLiteDSN("file:" + name + "?mode=memory&cache=shared"),
		DefaultTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// SeedUser inserts a user with the given role and plaintext password and
// returns its id. The hash uses bcrypt.MinCost to keep tests fast.
func SeedUser(t *testing.T, d *db.DB, name, email, password, role string) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id, err := d.Insert(context.Background(),
		`INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		name, email, string(hash), role)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return id
}

// SeedSession inserts a session and returns its id.
func SeedSession(t *testing.T, d *db.DB, title, date string, trainerID int64) int64 {
	t.Helper()
	id, err := d.Insert(context.Background(),
		`INSERT INTO sessions (title, session_date, trainer_id) VALUES (?, ?, ?)`,
		title, date, trainerID)
	if err != nil {
		t.Fatalf("seed session %q: %v", title, err)
	}
	return id
}

// GenerateJWTHS256 returns a signed token carrying the id and role claims the
// server issues.
func GenerateJWTHS256(t *testing.T, key string, id int64, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"id":   id,
		"role": role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}
