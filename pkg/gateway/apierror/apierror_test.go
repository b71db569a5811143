package apierror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hypecast-live/hypecast/pkg/core/agent"
	"github.com/hypecast-live/hypecast/pkg/core/session"
	"github.com/hypecast-live/hypecast/pkg/stream"
)

func TestFromError_SessionNotFound_Is404(t *testing.T) {
	apiErr, status := FromError(fmt.Errorf("load: %w", session.ErrNotFound), "req_test")
	if status != 404 {
		t.Fatalf("status=%d", status)
	}
	if apiErr.Type != ErrNotFound {
		t.Fatalf("type=%q", apiErr.Type)
	}
	if apiErr.RequestID != "req_test" {
		t.Fatalf("request_id=%q", apiErr.RequestID)
	}
}

func TestFromError_TooManySessions_Is429(t *testing.T) {
	apiErr, status := FromError(agent.ErrTooManySessions, "req_test")
	if status != 429 {
		t.Fatalf("status=%d", status)
	}
	if apiErr.Type != ErrOverloaded {
		t.Fatalf("type=%q", apiErr.Type)
	}
}

func TestFromError_StreamNotConfigured_Is503(t *testing.T) {
	_, status := FromError(stream.ErrNotConfigured, "req_test")
	if status != 503 {
		t.Fatalf("status=%d", status)
	}
}

func TestFromError_ContextCanceled_Is408(t *testing.T) {
	apiErr, status := FromError(context.Canceled, "req_test")
	if status != 408 {
		t.Fatalf("status=%d", status)
	}
	if apiErr.Type != ErrAPI {
		t.Fatalf("type=%q", apiErr.Type)
	}
}

func TestFromError_UnknownErrorIsOpaque(t *testing.T) {
	apiErr, status := FromError(errors.New("pgx: connection refused"), "req_test")
	if status != 500 {
		t.Fatalf("status=%d", status)
	}
	if apiErr.Message != "internal error" {
		t.Fatalf("message=%q, internals must not leak", apiErr.Message)
	}
}

func TestFromError_CanonicalErrorKeepsFields(t *testing.T) {
	apiErr, status := FromError(Invalid("role must be camera or spectator", "role"), "req_test")
	if status != 400 {
		t.Fatalf("status=%d", status)
	}
	if apiErr.Param != "role" {
		t.Fatalf("param=%q", apiErr.Param)
	}
	if apiErr.RequestID != "req_test" {
		t.Fatalf("request_id=%q", apiErr.RequestID)
	}
}
