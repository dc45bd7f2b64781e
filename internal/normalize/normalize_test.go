package normalize

import (
	"strings"
	"testing"
	"time"
)

func TestEmail(t *testing.T) {
	in := "john.doe@example.com"
	want := "john-doe-example-com"
	got := Email(in)
	if got != want {
		t.Fatalf("Email(%q) = %q, want %q", in, got, want)
	}
}

func TestEmailIdempotent(t *testing.T) {
	once := Email("jane.roe@example.com")
	if Email(once) != once {
		t.Fatalf("Email not idempotent: %q -> %q", once, Email(once))
	}
}

func TestEmailPreservesDistinctness(t *testing.T) {
	// emails that differ in more than `.`/`@` must stay distinct
	pairs := [][2]string{
		{"a@example.com", "b@example.com"},
		{"Alice@example.com", "alice@example.com"},
		{"a@example.com ", "a@example.com"},
	}
	for _, p := range pairs {
		if Email(p[0]) == Email(p[1]) {
			t.Fatalf("Email collided for %q and %q", p[0], p[1])
		}
	}
}

func TestMessageID(t *testing.T) {
	at := time.Date(2024, 10, 31, 19, 0, 0, 0, time.UTC)
	id := MessageID("bob@example.com", "alice@example.com", at)

	if !strings.HasPrefix(id, "bob-example-com_alice-example-com_20241031-190000_") {
		t.Fatalf("unexpected message id prefix: %q", id)
	}
}

func TestMessageIDUniqueWithinSameSecond(t *testing.T) {
	at := time.Date(2024, 10, 31, 19, 0, 0, 0, time.UTC)
	a := MessageID("bob@example.com", "alice@example.com", at)
	b := MessageID("bob@example.com", "alice@example.com", at)
	if a == b {
		t.Fatalf("two ids derived in the same second collided: %q", a)
	}
}
