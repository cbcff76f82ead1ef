package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks the variables Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DIRECTORY_BACKEND", "DATABASE_URL", "REDIS_URL", "PUSH_PROVIDER", "FCM_SERVER_KEY",
		"ROUTING_POLICY", "ADDRESSING_MODE", "DELIVERY_MODE", "TIMEZONE", "HTTP_PORT", "PORT",
		"PROVIDER_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DirectoryBackend != "memory" {
		t.Fatalf("unexpected backend %q", cfg.DirectoryBackend)
	}
	if cfg.PushProvider != ProviderLog {
		t.Fatalf("without a server key the log provider is expected, got %q", cfg.PushProvider)
	}
	if cfg.HTTPPort != "3000" || cfg.RoutingPolicy != "strict" || cfg.AddressingMode != "number" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ProviderTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.ProviderTimeout)
	}
	if loc, err := cfg.Location(); err != nil || loc != time.Local {
		t.Fatalf("expected local zone, got %v %v", loc, err)
	}
}

func TestLoadPicksFCMWhenKeyPresent(t *testing.T) {
	clearEnv(t)
	t.Setenv("FCM_SERVER_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PushProvider != ProviderFCM {
		t.Fatalf("expected fcm provider, got %q", cfg.PushProvider)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		expectErr string
	}{
		{"postgres without dsn", map[string]string{"DIRECTORY_BACKEND": "postgres"}, "DATABASE_URL"},
		{"redis without url", map[string]string{"DIRECTORY_BACKEND": "redis"}, "REDIS_URL"},
		{"unknown backend", map[string]string{"DIRECTORY_BACKEND": "firestore"}, "unknown directory backend"},
		{"fcm without key", map[string]string{"PUSH_PROVIDER": "fcm"}, "FCM_SERVER_KEY"},
		{"unknown provider", map[string]string{"PUSH_PROVIDER": "apns"}, "unknown push provider"},
		{"bad policy", map[string]string{"ROUTING_POLICY": "loose"}, "routing policy"},
		{"bad addressing", map[string]string{"ADDRESSING_MODE": "email"}, "addressing mode"},
		{"bad delivery mode", map[string]string{"DELIVERY_MODE": "silent"}, "payload mode"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.expectErr) {
				t.Fatalf("expected error containing %q, got %v", tt.expectErr, err)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("RELAY_TEST_INT", "nope")
	if got := getEnvAsInt("RELAY_TEST_INT", 4); got != 4 {
		t.Fatalf("invalid int should fall back, got %d", got)
	}
	t.Setenv("RELAY_TEST_INT", "7")
	if got := getEnvAsInt("RELAY_TEST_INT", 4); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	t.Setenv("RELAY_TEST_DURATION", "1m")
	if got := getEnvAsDuration("RELAY_TEST_DURATION", time.Second); got != time.Minute {
		t.Fatalf("expected 1m, got %s", got)
	}
	if got := getEnv("RELAY_TEST_UNSET_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestLoadNamedTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMEZONE", "America/Mexico_City")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "America/Mexico_City" {
		t.Fatalf("unexpected zone %s", loc)
	}
}
