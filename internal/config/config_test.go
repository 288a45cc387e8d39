package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadWithDefaults_Succeeds(t *testing.T) {
	// Ensure envs are clean to use defaults
	os.Unsetenv("HTTP_ADDRESS")
	os.Unsetenv("DB_DRIVER")
	os.Unsetenv("JWT_KEY")
	os.Unsetenv("TOKEN_TTL")
	os.Unsetenv("BCRYPT_COST")
	os.Unsetenv("TRUSTED_PROXIES")
	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.HTTP.Address == "" || cfg.Database.Path == "" || cfg.Auth.JWTKey == "" {
		t.Fatalf("unexpected empty defaults: %+v", cfg)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Fatalf("default driver = %q, want sqlite3", cfg.Database.Driver)
	}
	if cfg.Auth.TokenTTL != 0 {
		t.Fatalf("default token ttl = %v, want 0 (no expiry)", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.BcryptCost != 10 {
		t.Fatalf("default bcrypt cost = %d, want 10", cfg.Auth.BcryptCost)
	}
	if len(cfg.HTTP.TrustedProxies) != 0 {
		t.Fatalf("default trusted proxies = %v, want none", cfg.HTTP.TrustedProxies)
	}
}

func TestLoad_RequiresJWTKey(t *testing.T) {
	os.Unsetenv("JWT_KEY")
	t.Setenv("DB_PATH", "test.db")
	t.Setenv("HTTP_ADDRESS", ":1234")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_KEY is not set")
	}
	// When set, it should succeed
	t.Setenv("JWT_KEY", "x")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with key set: %v", err)
	}
	if cfg.HTTP.Address != ":1234" {
		t.Fatalf("HTTP address not read from env: %q", cfg.HTTP.Address)
	}
}

func TestLoad_ParsesTypedValues(t *testing.T) {
	t.Setenv("JWT_KEY", "x")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("LOGIN_COOLDOWN", "30s")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.1, ,192.168.0.0/16 ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Port != 3307 {
		t.Fatalf("database config: %+v", cfg.Database)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour || cfg.Redis.LoginCooldown != 30*time.Second {
		t.Fatalf("durations: ttl=%v cooldown=%v", cfg.Auth.TokenTTL, cfg.Redis.LoginCooldown)
	}
	if p := cfg.HTTP.TrustedProxies; len(p) != 2 || p[0] != "10.0.0.1" || p[1] != "192.168.0.0/16" {
		t.Fatalf("trusted proxies: %q", p)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("JWT_KEY", "x")
	t.Setenv("DB_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric DB_PORT")
	}
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1,not-an-ip")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid trusted proxy")
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{JWTKey: "super-secret"}, Database: DatabaseConfig{Password: "hunter22"}}
	s := cfg.String()
	if strings.Contains(s, "super-secret") || strings.Contains(s, "hunter22") {
		t.Fatalf("secret leaked in %q", s)
	}
}
