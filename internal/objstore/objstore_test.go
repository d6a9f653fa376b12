package objstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func testBackends(t *testing.T) map[string]Store {
	t.Helper()
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "objects.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = local.Close()
		_ = sqlite.Close()
	})
	return map[string]Store{"local": local, "sqlite": sqlite}
}

func TestStoreRoundTrip(t *testing.T) {
	const key = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	payload := []byte("hello world")
	meta := Metadata{"type": "text/plain", "owner": "abc", "uploaded": "1700000000"}

	for name, st := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := st.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), meta); err != nil {
				t.Fatalf("put: %v", err)
			}

			info, err := st.Head(ctx, key)
			if err != nil {
				t.Fatalf("head: %v", err)
			}
			if info.Size != int64(len(payload)) {
				t.Fatalf("expected size %d, got %d", len(payload), info.Size)
			}
			if info.Meta["owner"] != "abc" || info.Meta["type"] != "text/plain" {
				t.Fatalf("unexpected metadata: %#v", info.Meta)
			}

			rc, info, err := st.Get(ctx, key)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(data, payload) {
				t.Fatalf("payload mismatch: got %q", data)
			}
			if info.Meta["uploaded"] != "1700000000" {
				t.Fatalf("unexpected metadata on get: %#v", info.Meta)
			}

			entries, err := st.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 1 || entries[0].Key != key {
				t.Fatalf("expected one entry for %s, got %#v", key, entries)
			}

			if err := st.Delete(ctx, key); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := st.Head(ctx, key); !errors.Is(err, ErrNotExist) {
				t.Fatalf("expected ErrNotExist after delete, got %v", err)
			}
			if err := st.Delete(ctx, key); !errors.Is(err, ErrNotExist) {
				t.Fatalf("expected ErrNotExist on second delete, got %v", err)
			}
		})
	}
}

func TestPutKeepsExistingObject(t *testing.T) {
	const key = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	for name, st := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := Metadata{"owner": "first"}
			if err := st.Put(ctx, key, bytes.NewBufferString("hello"), 5, first); err != nil {
				t.Fatalf("first put: %v", err)
			}
			second := Metadata{"owner": "second"}
			if err := st.Put(ctx, key, bytes.NewBufferString("hello"), 5, second); err != nil {
				t.Fatalf("second put: %v", err)
			}

			info, err := st.Head(ctx, key)
			if err != nil {
				t.Fatalf("head: %v", err)
			}
			if info.Meta["owner"] != "first" {
				t.Fatalf("expected first writer's metadata to survive, got %#v", info.Meta)
			}
		})
	}
}

func TestPutSizeMismatch(t *testing.T) {
	const key = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

	for name, st := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			err := st.Put(context.Background(), key, bytes.NewBufferString("abc"), 99, nil)
			if err == nil {
				t.Fatal("expected error for size mismatch")
			}
		})
	}
}

func TestLocalRejectsTraversalKeys(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := local.Put(context.Background(), key, bytes.NewBufferString("x"), 1, nil); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}
