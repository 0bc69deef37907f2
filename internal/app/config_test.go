package app

import (
	"testing"
	"time"
)

func TestNormalizeJoinPath(t *testing.T) {
	cases := map[string]string{
		"":      "/ws",
		"join":  "/join",
		"/join": "/join",
	}
	for in, want := range cases {
		if got := NormalizeJoinPath(in); got != want {
			t.Fatalf("NormalizeJoinPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Addr != ":8080" || cfg.Path != "/ws" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.TypingTTL != 5*time.Second || cfg.RoomGrace != 30*time.Second {
		t.Fatalf("timing defaults: %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ROOMCAST_ADDR", ":9999")
	t.Setenv("ROOMCAST_PATH", "chat")
	t.Setenv("ROOMCAST_TYPING_TTL", "2s")
	t.Setenv("ROOMCAST_RATE_LIMIT", "10")

	cfg := Load()
	if cfg.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.Path != "/chat" {
		t.Fatalf("path not normalized: %q", cfg.Path)
	}
	if cfg.TypingTTL != 2*time.Second {
		t.Fatalf("typing ttl = %v", cfg.TypingTTL)
	}
	if cfg.RateLimit != 10 {
		t.Fatalf("rate limit = %d", cfg.RateLimit)
	}
}
