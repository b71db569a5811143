package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCallIDRoundTrip(t *testing.T) {
	if got := CallID("abc123"); got != "pickup-abc123" {
		t.Fatalf("CallID=%q", got)
	}
	id, ok := IDFromCallID("pickup-abc123")
	if !ok || id != "abc123" {
		t.Fatalf("IDFromCallID=%q ok=%v", id, ok)
	}
}

func TestIDFromCallID_Malformed(t *testing.T) {
	for _, callID := range []string{"", "pickup-", "lobby-abc", "abc123"} {
		if id, ok := IDFromCallID(callID); ok {
			t.Fatalf("IDFromCallID(%q) unexpectedly bound to %q", callID, id)
		}
	}
}

func TestMemoryStore_CreateGet(t *testing.T) {
	s := NewMemoryStore()
	sess, err := s.Create("abc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Status != StatusWaiting {
		t.Fatalf("status=%q, want waiting", sess.Status)
	}
	if sess.StreamCallID != "pickup-abc" {
		t.Fatalf("stream_call_id=%q", sess.StreamCallID)
	}
	if sess.CreatedAt.IsZero() || sess.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at=%v, want non-zero UTC", sess.CreatedAt)
	}

	got, err := s.Get("abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != sess {
		t.Fatal("Get returned a different instance than Create")
	}
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Create("abc"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create("abc"); !errors.Is(err, ErrExists) {
		t.Fatalf("err=%v, want ErrExists", err)
	}
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestMemoryStore_SetStatus(t *testing.T) {
	s := NewMemoryStore()
	sess, _ := s.Create("abc")
	if err := s.SetStatus("abc", StatusLive); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if sess.Status != StatusLive {
		t.Fatalf("status=%q, want live", sess.Status)
	}
	if err := s.SetStatus("nope", StatusLive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestNewID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID: %v", err)
		}
		if len(id) != idLength {
			t.Fatalf("len(%q)=%d, want %d", id, len(id), idLength)
		}
		for _, r := range id {
			if !strings.ContainsRune(idAlphabet, r) {
				t.Fatalf("id %q contains %q outside the alphabet", id, r)
			}
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q in 100 draws", id)
		}
		seen[id] = struct{}{}
	}
}
