package config

import (
	"testing"

	"craftriver/globals"
)

func TestLoadResolvesJwtSecretAfterEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	Load()

	if string(globals.JwtSecret) != "test-secret" {
		t.Fatalf("JwtSecret = %q, want value from environment", globals.JwtSecret)
	}
}

func TestLoadJwtSecretFallback(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	Load()

	if len(globals.JwtSecret) == 0 {
		t.Fatal("JwtSecret empty after Load")
	}
}

func TestLoadPortNormalization(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg := Load()
	if cfg.Port != ":9090" {
		t.Fatalf("Port = %q, want :9090", cfg.Port)
	}

	t.Setenv("PORT", ":7070")
	cfg = Load()
	if cfg.Port != ":7070" {
		t.Fatalf("Port = %q, want :7070", cfg.Port)
	}
}
