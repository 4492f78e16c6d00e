package config

import (
	"strings"
	"testing"
)

// setRequiredEnv sets the minimum environment for Load to succeed.
// t.Setenv automatically restores the previous value when the test ends.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", strings.Repeat("s", 32))
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 3001 {
		t.Errorf("Port = %d, want 3001", cfg.Port)
	}
	if cfg.StoreBackend != BackendFile {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, BackendFile)
	}
	if cfg.GitHubCallbackURL != "http://localhost:3001/auth/github/callback" {
		t.Errorf("GitHubCallbackURL = %q", cfg.GitHubCallbackURL)
	}
	if cfg.GoogleCallbackURL != "http://localhost:3001/auth/google/callback" {
		t.Errorf("GoogleCallbackURL = %q", cfg.GoogleCallbackURL)
	}
	if cfg.GitHubEnabled() || cfg.GoogleEnabled() {
		t.Error("providers should be disabled without credentials")
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "too-short")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a SESSION_SECRET shorter than 32 chars")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "mongodb")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an unknown STORE_BACKEND")
	}
}

func TestLoadRejectsHalfCredentialPair(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GITHUB_CLIENT_ID", "id-without-secret")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a client id without its secret")
	}
}

func TestLoadEnabledProviders(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.GitHubEnabled() {
		t.Error("GitHubEnabled() = false with credentials set")
	}
	if cfg.GoogleEnabled() {
		t.Error("GoogleEnabled() = true without credentials")
	}
}
