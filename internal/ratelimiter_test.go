package internal

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("alice") {
			t.Fatalf("hit %d should be allowed", i)
		}
	}
	if limiter.Allow("alice") {
		t.Fatalf("fourth hit should be denied")
	}
	// keys are independent
	if !limiter.Allow("bob") {
		t.Fatalf("bob should be unaffected by alice's limit")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	limiter := NewRateLimiter(1, 30*time.Millisecond)
	if !limiter.Allow("alice") {
		t.Fatalf("first hit denied")
	}
	if limiter.Allow("alice") {
		t.Fatalf("second immediate hit allowed")
	}
	time.Sleep(50 * time.Millisecond)
	if !limiter.Allow("alice") {
		t.Fatalf("hit after window should be allowed")
	}
}

func TestRateLimiterForget(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	limiter.Allow("alice")
	limiter.Forget("alice")
	if !limiter.Allow("alice") {
		t.Fatalf("Forget did not reset the window")
	}
}
