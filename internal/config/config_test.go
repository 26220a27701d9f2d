package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IAM_JWT_SECRET", "secret")
	t.Setenv("IAM_PG_DSN", "postgres://localhost/iam")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 168*time.Hour {
		t.Fatalf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.IsProduction() {
		t.Fatal("default environment must not be production")
	}
}

func TestLoadRequiresSecretAndDSN(t *testing.T) {
	t.Setenv("IAM_JWT_SECRET", "")
	t.Setenv("IAM_PG_DSN", "postgres://localhost/iam")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT secret")
	}

	t.Setenv("IAM_JWT_SECRET", "secret")
	t.Setenv("IAM_PG_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DSN")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IAM_JWT_SECRET", "secret")
	t.Setenv("IAM_PG_DSN", "postgres://localhost/iam")
	t.Setenv("IAM_ENVIRONMENT", "production")
	t.Setenv("IAM_ACCESS_TOKEN_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production mode")
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
}
