package middleware

import (
	"testing"
	"time"
)

func TestLimiterStore_AllowAndCleanup(t *testing.T) {
	// allow 5 events immediately then the 6th should be rejected
	s := NewLimiterStore(5, 5, 100*time.Millisecond)
	defer s.Stop()

	key := "test@example.com"
	for i := 0; i < 5; i++ {
		if !s.Allow(key) {
			t.Fatalf("expected allow at iteration %d", i)
		}
	}

	if s.Allow(key) {
		t.Fatalf("expected limiter to block after burst consumed")
	}

	// ensure cleanup eventually removes old entries
	time.Sleep(150 * time.Millisecond)
	s.mu.Lock()
	if _, ok := s.clients[key]; !ok {
		// entry may be removed after cleanup; that's acceptable
	}
	s.mu.Unlock()
}

func TestLimiterStore_IndependentKeys(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	if !s.Allow("a@example.com") {
		t.Fatal("first event for key a should be allowed")
	}
	if s.Allow("a@example.com") {
		t.Fatal("second event for key a should be blocked")
	}
	if !s.Allow("b@example.com") {
		t.Fatal("key b should not share key a's budget")
	}
}
