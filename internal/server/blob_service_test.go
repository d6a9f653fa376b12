package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"petal/internal/objstore"
)

func newTestService(t *testing.T, opts BlobServiceOptions) *BlobService {
	t.Helper()
	store, err := objstore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("create local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if opts.PublicURL == "" {
		opts.PublicURL = "http://blobs.test"
	}
	if opts.MaxSizeBytes == 0 {
		opts.MaxSizeBytes = 1 << 20
	}
	if opts.Retention == 0 {
		opts.Retention = 24 * time.Hour
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBlobService(store, opts, logger)
}

func TestAdmitIdempotentKeepsOwner(t *testing.T) {
	service := newTestService(t, BlobServiceOptions{})
	ctx := context.Background()
	payload := []byte("shared content")

	first, created, err := service.Admit(ctx, bytes.NewReader(payload), "text/plain", ownerPubKey)
	if err != nil {
		t.Fatalf("first admit: %v", err)
	}
	if !created {
		t.Fatal("expected first admit to create")
	}

	second, created, err := service.Admit(ctx, bytes.NewReader(payload), "text/plain", otherPubKey)
	if err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if created {
		t.Fatal("expected duplicate admit to short-circuit")
	}
	if second != first {
		t.Fatalf("duplicate descriptor differs:\n got %+v\nwant %+v", second, first)
	}

	blob, err := service.Stat(ctx, first.SHA256)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if blob.Owner != ownerPubKey {
		t.Fatalf("owner reassigned on duplicate admit: %s", blob.Owner)
	}
	if blob.Uploaded.Unix() != first.Uploaded {
		t.Fatalf("uploaded rewritten: %d vs %d", blob.Uploaded.Unix(), first.Uploaded)
	}
}

func TestAdmitRejectsOversizePayload(t *testing.T) {
	service := newTestService(t, BlobServiceOptions{MaxSizeBytes: 16})

	_, _, err := service.Admit(context.Background(), strings.NewReader(strings.Repeat("x", 17)), "text/plain", ownerPubKey)
	if err == nil {
		t.Fatal("expected error for oversize payload")
	}
	if status := httpStatusFromError(err); status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", status)
	}
}

func TestAdmitEmptyAllowListAdmitsAnyType(t *testing.T) {
	service := newTestService(t, BlobServiceOptions{})

	descriptor, _, err := service.Admit(context.Background(), strings.NewReader("archive"), "application/zip", ownerPubKey)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if descriptor.Type != "application/zip" {
		t.Fatalf("descriptor type = %s", descriptor.Type)
	}
}

func TestAdmitNormalizesMediaType(t *testing.T) {
	service := newTestService(t, BlobServiceOptions{AllowedMediaTypes: []string{"text/plain"}})

	descriptor, _, err := service.Admit(context.Background(), strings.NewReader("hi"), "Text/Plain; charset=utf-8", ownerPubKey)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if descriptor.Type != "text/plain" {
		t.Fatalf("descriptor type = %s", descriptor.Type)
	}
}

func TestFetchDoesNotEvaluateExpiry(t *testing.T) {
	service := newTestService(t, BlobServiceOptions{})
	ctx := context.Background()

	descriptor, _, err := service.Admit(ctx, strings.NewReader("lingering"), "text/plain", ownerPubKey)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	service.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	// Direct retrieval of an expired blob still succeeds until a listing
	// sweep discovers it.
	rc, blob, err := service.Fetch(ctx, descriptor.SHA256)
	if err != nil {
		t.Fatalf("fetch expired blob: %v", err)
	}
	defer rc.Close()
	if blob.SHA256 != descriptor.SHA256 {
		t.Fatalf("unexpected blob: %s", blob.SHA256)
	}
}

func TestSweepFailedDeleteCountsAsFailed(t *testing.T) {
	service := newTestService(t, BlobServiceOptions{})
	ctx := context.Background()

	if _, _, err := service.Admit(ctx, strings.NewReader("doomed"), "text/plain", ownerPubKey); err != nil {
		t.Fatalf("admit: %v", err)
	}

	service.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	service.store = failingDeleteStore{service.store}

	result, err := service.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.ExpiredCount != 1 || result.FailedCount != 1 || result.DeletedCount != 0 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}
}

func TestDescriptorExtension(t *testing.T) {
	cases := []struct {
		mediaType string
		wantExt   string
	}{
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"application/pdf", ".pdf"},
		{"application/octet-stream", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := extensionForType(tc.mediaType); got != tc.wantExt {
			t.Fatalf("extensionForType(%q) = %q, want %q", tc.mediaType, got, tc.wantExt)
		}
	}
}

type failingDeleteStore struct {
	objstore.Store
}

func (failingDeleteStore) Delete(context.Context, string) error {
	return io.ErrUnexpectedEOF
}
