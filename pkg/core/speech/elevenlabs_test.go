package speech

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestBuildElevenLabsWSURL(t *testing.T) {
	got, err := buildElevenLabsWSURL("", "voice123")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(got, "/v1/text-to-speech/voice123/stream-input") {
		t.Fatalf("url=%q missing stream-input path", got)
	}
	if !strings.Contains(got, "model_id=") || !strings.Contains(got, "output_format=pcm_24000") {
		t.Fatalf("url=%q missing default query params", got)
	}

	if _, err := buildElevenLabsWSURL("", ""); err == nil {
		t.Fatal("expected error for empty voice id")
	}
}

func TestSynthesize_REST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		if !strings.HasSuffix(r.URL.Path, "/v1/text-to-speech/voice123") {
			t.Errorf("path=%q", r.URL.Path)
		}
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	e := NewElevenLabsWithClient("k", "voice123", srv.Client()).WithBaseURLs(srv.URL, "")
	audio, err := e.Synthesize(context.Background(), "swish!")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if string(audio) != "audio-bytes" {
		t.Fatalf("audio=%q", audio)
	}
}

func TestSynthesize_RESTError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewElevenLabsWithClient("k", "voice123", srv.Client()).WithBaseURLs(srv.URL, "")
	if _, err := e.Synthesize(context.Background(), "swish!"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestStreamAudio_WS(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		// Drain the init, text, and flush frames.
		sawFlush := false
		for range 3 {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				t.Errorf("read: %v", err)
				return
			}
			if flush, _ := msg["flush"].(bool); flush {
				sawFlush = true
			}
		}
		if !sawFlush {
			t.Errorf("client never sent a flush frame")
		}
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("chunk-1"))})
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("chunk-2")), "isFinal": true})
	}))
	defer srv.Close()

	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	e := NewElevenLabs("k", "voice123").WithBaseURLs("", wsBase)
	audio, err := e.StreamAudio(context.Background(), "he scores!")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if string(audio) != "chunk-1chunk-2" {
		t.Fatalf("audio=%q", audio)
	}
}
