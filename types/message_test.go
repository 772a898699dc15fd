package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMessageInvolvesEitherDirection(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	msg := Message{SenderID: a, ReceiverID: b}

	if !msg.Involves(a, b) || !msg.Involves(b, a) {
		t.Fatalf("expected message to involve the pair in both orders")
	}
	if msg.Involves(a, c) {
		t.Fatalf("message should not involve a third party")
	}
	if msg.Counterpart(a) != b || msg.Counterpart(b) != a {
		t.Fatalf("unexpected counterpart")
	}
}

func TestMessageBefore(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lo := Message{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), CreatedAt: at}
	hi := Message{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), CreatedAt: at}
	later := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: at.Add(time.Millisecond)}

	if !lo.Before(hi) || hi.Before(lo) {
		t.Fatalf("expected id tiebreak")
	}
	if !hi.Before(later) {
		t.Fatalf("expected time to dominate id")
	}
}
