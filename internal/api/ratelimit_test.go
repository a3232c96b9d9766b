package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests rejected")
	}
	if rl.Allow("a") {
		t.Fatal("third request allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("other client limited")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("retry after = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("request rejected after window reset")
	}

	now = now.Add(5 * time.Minute)
	rl.Allow("c")
	if _, ok := rl.buckets["b"]; ok {
		t.Fatal("idle bucket not cleaned up")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:1234"
	if ip := clientIP(r); ip != "10.0.0.5" {
		t.Fatalf("ip = %q", ip)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := clientIP(r); ip != "203.0.113.9" {
		t.Fatalf("forwarded ip = %q", ip)
	}
}
