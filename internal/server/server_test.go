package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"petal/internal/api"
	"petal/internal/auth"
	"petal/internal/config"
	"petal/internal/objstore"
)

const (
	ownerPubKey = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	otherPubKey = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	testAdminToken = "prune-secret"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := objstore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("create local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.PublicURL = "http://blobs.test"
	cfg.Upload.MaxSizeBytes = 1 << 20
	cfg.Upload.AllowedMediaTypes = []string{"image/png", "text/plain"}
	cfg.Auth.AllowedPubKeys = []string{ownerPubKey, otherPubKey}
	cfg.Auth.AdminToken = testAdminToken

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(&cfg, store, logger)
}

func authHeader(t *testing.T, pubkey string) string {
	t.Helper()
	ev := auth.Event{
		PubKey:    pubkey,
		Kind:      auth.EventKind,
		CreatedAt: time.Now().Unix(),
		Sig:       "cafe",
	}
	header, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode auth event: %v", err)
	}
	return header
}

func staleAuthEvent(t *testing.T, pubkey string, age time.Duration) string {
	t.Helper()
	ev := auth.Event{
		PubKey:    pubkey,
		Kind:      auth.EventKind,
		CreatedAt: time.Now().Add(-age).Unix(),
		Sig:       "cafe",
	}
	header, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode auth event: %v", err)
	}
	return header
}

func uploadBlob(t *testing.T, srv *Server, pubkey, mediaType string, payload []byte) api.BlobDescriptor {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/upload", bytes.NewReader(payload))
	req.Header.Set("Authorization", authHeader(t, pubkey))
	if mediaType != "" {
		req.Header.Set("Content-Type", mediaType)
	}
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusCreated && w.Code != http.StatusOK {
		t.Fatalf("upload failed: status %d, body %s", w.Code, w.Body.String())
	}
	var descriptor api.BlobDescriptor
	if err := json.Unmarshal(w.Body.Bytes(), &descriptor); err != nil {
		t.Fatalf("decode descriptor: %v", err)
	}
	return descriptor
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return errResp
}

func TestRootLiveness(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type: %s", ct)
	}
}

func TestAuthenticateOptional(t *testing.T) {
	srv := newTestServer(t)

	t.Run("absent header passes with empty pubkey", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/list/"+ownerPubKey, nil)
		pubkey, err := srv.authenticate(req, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pubkey != "" {
			t.Fatalf("expected empty pubkey, got %q", pubkey)
		}
	})

	t.Run("present invalid header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/list/"+ownerPubKey, nil)
		req.Header.Set("Authorization", "Nostr not-base64!")
		if _, err := srv.authenticate(req, false); err == nil {
			t.Fatal("expected error for malformed header")
		}
	})
}
