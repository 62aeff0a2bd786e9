package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("BOOKINGS_BACKEND", "")
	t.Setenv("READ_RETRY_ATTEMPTS", "")
	t.Setenv("CHECKOUT_MAX_ATTEMPTS", "")
	t.Setenv("CHECKOUT_WINDOW", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.StorageBackend != "memory" {
		t.Fatalf("expected memory storage by default, got %s", cfg.StorageBackend)
	}
	if cfg.BookingsStore() != "memory" {
		t.Fatalf("expected bookings to follow storage backend, got %s", cfg.BookingsStore())
	}
	if cfg.ReadRetryAttempts != 3 {
		t.Fatalf("expected 3 read attempts, got %d", cfg.ReadRetryAttempts)
	}
	if cfg.SlotLockTTL != 10*time.Second {
		t.Fatalf("expected default lock ttl, got %s", cfg.SlotLockTTL)
	}
	if cfg.Currency != "INR" {
		t.Fatalf("expected INR, got %s", cfg.Currency)
	}
	if cfg.CheckoutMaxAttempts != 5 || cfg.CheckoutWindow != time.Hour {
		t.Fatalf("unexpected checkout velocity defaults: %d per %s", cfg.CheckoutMaxAttempts, cfg.CheckoutWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", " Mongo ")
	t.Setenv("BOOKINGS_BACKEND", "dynamodb")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://clinic.example, https://admin.clinic.example,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("READ_RETRY_BASE_DELAY", "200ms")
	t.Setenv("CURRENCY", "usd")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.StorageBackend != "mongo" {
		t.Fatalf("expected mongo, got %q", cfg.StorageBackend)
	}
	if cfg.BookingsStore() != "dynamodb" {
		t.Fatalf("expected dynamodb bookings, got %s", cfg.BookingsStore())
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.clinic.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps override, got %v", cfg.RateLimitRPS)
	}
	if cfg.ReadRetryBaseDelay != 200*time.Millisecond {
		t.Fatalf("expected retry delay override, got %s", cfg.ReadRetryBaseDelay)
	}
	if cfg.Currency != "USD" {
		t.Fatalf("expected upper-cased currency, got %s", cfg.Currency)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "lots")
	t.Setenv("SLOT_LOCK_TTL", "soon")
	cfg := Load()
	if cfg.RateLimitBurst != 20 {
		t.Fatalf("expected burst default, got %d", cfg.RateLimitBurst)
	}
	if cfg.SlotLockTTL != 10*time.Second {
		t.Fatalf("expected ttl default, got %s", cfg.SlotLockTTL)
	}
}
