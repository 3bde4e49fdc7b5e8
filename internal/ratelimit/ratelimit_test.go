package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 2, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("Expected burst of 2 to be allowed")
	}
	if l.Allow("a") {
		t.Error("Expected third immediate event to be denied")
	}
	if !l.Allow("b") {
		t.Error("Expected a different client to have its own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Error("Expected a token to refill after one second")
	}
}

func TestAllowDisabled(t *testing.T) {
	l := New(0, 1, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("a") {
			t.Fatalf("Expected unlimited events, denied at %d", i)
		}
	}
}

func TestEviction(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(2 * time.Minute)
	l.Allow("b")

	if _, ok := l.visitors["a"]; ok {
		t.Error("Expected idle visitor to be evicted")
	}
	if len(l.visitors) != 1 {
		t.Errorf("Expected 1 visitor, got %d", len(l.visitors))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Errorf("Expected 192.0.2.1, got %q", got)
	}

	req.RemoteAddr = "not-an-address"
	if got := ClientIP(req); got != "not-an-address" {
		t.Errorf("Expected raw remote addr, got %q", got)
	}
}
