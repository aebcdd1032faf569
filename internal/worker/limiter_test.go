package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1) // 100 rps, burst 1
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://resolver.example.com/api/region?period=Viking+Age"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different host should also work
	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "http://slow.example.com"); err != nil {
		t.Fatalf("first wait should use the burst token: %v", err)
	}
	if err := limiter.Wait(ctx, "http://slow.example.com"); err == nil {
		t.Error("expected second wait to fail once the context expires")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	// 1 rps, burst 1
	limiter := NewLimiter(1, 1)
	ctx := context.Background()
	url := "http://example.com/api/region"

	if err := limiter.Wait(ctx, url); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Same host, different path shares the bucket
	if limiter.Allow("http://example.com/other") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Different host should be allowed
	if !limiter.Allow("http://other.com") {
		t.Errorf("expected allow for other host")
	}
}

func TestLimiter_ZeroRateDisablesPacing(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 10; i++ {
		if !limiter.Allow("http://example.com") {
			t.Fatalf("request %d should pass with pacing disabled", i)
		}
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10) // fast default
	host := "slow.com"

	// Set strict limit for specific host
	limiter.SetHostRate(host, 0.1, 1) // very slow

	// First request passes (burst 1)
	if !limiter.Allow("http://" + host) {
		t.Errorf("first request should pass")
	}

	// Second request fails
	if limiter.Allow("http://" + host) {
		t.Errorf("second request should fail")
	}

	// Other host still fast
	if !limiter.Allow("http://fast.com") {
		t.Errorf("other host should pass")
	}
}

func TestLimiter_SetHostRateAcceptsURLAndUnpaced(t *testing.T) {
	limiter := NewLimiter(0.1, 1) // slow default
	limiter.SetHostRate("https://media.example.com/api", 0, 1)

	for i := 0; i < 5; i++ {
		if !limiter.Allow("https://media.example.com/media/7") {
			t.Fatalf("request %d to an unpaced host should pass", i)
		}
	}

	if !limiter.Allow("anthropic") {
		t.Errorf("first default request should pass")
	}
	if limiter.Allow("anthropic") {
		t.Errorf("default rate still applies to other keys")
	}
}

func TestHostKey(t *testing.T) {
	tests := map[string]string{
		"http://example.com/foo":     "example.com",
		"https://example.com:8443/x": "example.com:8443",
		"anthropic":                  "anthropic",
		"::invalid":                  "::invalid",
	}
	for in, want := range tests {
		if got := HostKey(in); got != want {
			t.Errorf("HostKey(%q) = %q, want %q", in, got, want)
		}
	}
}
