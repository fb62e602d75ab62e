package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnBadNumericValues(t *testing.T) {
	t.Setenv("CATALOG_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.CatalogTTLSeconds != 30 {
		t.Fatalf("expected catalog TTL fallback 30, got %d", cfg.CatalogTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected token TTL fallback 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestAddressUsesPort(t *testing.T) {
	t.Setenv("PORT", "9191")

	cfg := Load()
	if cfg.Address() != ":9191" {
		t.Fatalf("expected :9191, got %q", cfg.Address())
	}
}
