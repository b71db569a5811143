package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hypecast-live/hypecast/pkg/blob"
	"github.com/hypecast-live/hypecast/pkg/core/session"
)

type fakeBlob struct {
	objects      map[string][]byte
	contentTypes map[string]string
	signedTTL    time.Duration
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte), contentTypes: make(map[string]string)}
}

func (b *fakeBlob) Upload(ctx context.Context, object string, data []byte, contentType string) error {
	b.objects[object] = data
	b.contentTypes[object] = contentType
	return nil
}

func (b *fakeBlob) SignedURL(object string, ttl time.Duration) (string, error) {
	b.signedTTL = ttl
	return "https://signed.example/" + object, nil
}

type fakeArchiver struct {
	saved []*session.Session
}

func (a *fakeArchiver) SaveSession(ctx context.Context, sess *session.Session) error {
	a.saved = append(a.saved, sess)
	return nil
}

func uploadRequest(path, sessionID string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.SetPathValue("id", sessionID)
	return req
}

func TestUploadReel_StoresSignsAndCompletes(t *testing.T) {
	store := session.NewMemoryStore()
	sess, err := store.Create("abc123def456")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fb := newFakeBlob()
	arch := &fakeArchiver{}
	h := &Reels{Store: store, Blob: fb, Archive: arch, URLTTL: 2 * time.Hour}

	rr := httptest.NewRecorder()
	h.UploadReel(rr, uploadRequest("/api/sessions/"+sess.ID+"/reel", sess.ID, []byte("mp4-bytes")))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var resp reelUploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	object := blob.ReelObject(sess.ID)
	if resp.ReelID != sess.ID {
		t.Fatalf("reel_id=%q", resp.ReelID)
	}
	if resp.ReelURL != "https://signed.example/"+object {
		t.Fatalf("reel_url=%q", resp.ReelURL)
	}
	if resp.Status != session.StatusCompleted {
		t.Fatalf("status=%q", resp.Status)
	}
	if string(fb.objects[object]) != "mp4-bytes" {
		t.Fatalf("stored object=%q", fb.objects[object])
	}
	if fb.contentTypes[object] != "video/mp4" {
		t.Fatalf("content type=%q", fb.contentTypes[object])
	}
	if fb.signedTTL != 2*time.Hour {
		t.Fatalf("signed ttl=%v", fb.signedTTL)
	}
	if sess.Status != session.StatusCompleted || sess.ReelURL != resp.ReelURL {
		t.Fatalf("session not completed: status=%q url=%q", sess.Status, sess.ReelURL)
	}
	if len(arch.saved) != 1 || arch.saved[0].ID != sess.ID {
		t.Fatalf("archived sessions=%d", len(arch.saved))
	}
}

func TestUploadReel_WithoutBlobReturns503(t *testing.T) {
	store := session.NewMemoryStore()
	sess, _ := store.Create("abc123def456")
	h := &Reels{Store: store}

	rr := httptest.NewRecorder()
	h.UploadReel(rr, uploadRequest("/api/sessions/"+sess.ID+"/reel", sess.ID, []byte("x")))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestUploadReel_UnknownSessionReturns404(t *testing.T) {
	h := &Reels{Store: session.NewMemoryStore(), Blob: newFakeBlob()}

	rr := httptest.NewRecorder()
	h.UploadReel(rr, uploadRequest("/api/sessions/nope/reel", "nope", []byte("x")))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestUploadRecording_StoresRawCapture(t *testing.T) {
	store := session.NewMemoryStore()
	sess, _ := store.Create("abc123def456")
	fb := newFakeBlob()
	h := &Reels{Store: store, Blob: fb}

	rr := httptest.NewRecorder()
	req := uploadRequest("/api/sessions/"+sess.ID+"/recording", sess.ID, []byte("webm-bytes"))
	h.UploadRecording(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var resp recordingUploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	object := blob.RawVideoObject(sess.ID)
	if resp.Object != object {
		t.Fatalf("object=%q, want %q", resp.Object, object)
	}
	if string(fb.objects[object]) != "webm-bytes" {
		t.Fatalf("stored object=%q", fb.objects[object])
	}
	if fb.contentTypes[object] != "video/webm" {
		t.Fatalf("content type=%q", fb.contentTypes[object])
	}
	if sess.Status != session.StatusWaiting {
		t.Fatalf("recording upload must not change status, got %q", sess.Status)
	}
}

func TestUploadRecording_EmptyBodyReturns400(t *testing.T) {
	store := session.NewMemoryStore()
	sess, _ := store.Create("abc123def456")
	h := &Reels{Store: store, Blob: newFakeBlob()}

	rr := httptest.NewRecorder()
	h.UploadRecording(rr, uploadRequest("/api/sessions/"+sess.ID+"/recording", sess.ID, nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}
