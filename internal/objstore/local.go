package objstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	localTmpDir     = "tmp"
	localMetaSuffix = ".meta.json"
)

// Local stores objects in a content-addressed directory tree with a JSON
// sidecar file per object holding its metadata.
type Local struct {
	root string
}

// NewLocal creates a local store rooted at root.
func NewLocal(root string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, localTmpDir), 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Put writes the payload to a temp file and renames it into place. An object
// already present under key keeps its bytes and metadata untouched.
func (l *Local) Put(ctx context.Context, key string, r io.Reader, size int64, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := l.pathFromKey(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(l.root, localTmpDir), "put-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return err
	}
	if size >= 0 && n != size {
		cleanup()
		return fmt.Errorf("short write for %s: got %d bytes, want %d", key, n, size)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return err
	}
	if err := l.writeMeta(dst, meta); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		// A concurrent writer of identical content may have won the rename.
		if _, statErr := os.Stat(dst); statErr == nil {
			_ = os.Remove(tmpPath)
			return nil
		}
		_ = os.Remove(dst + localMetaSuffix)
		cleanup()
		return err
	}
	return nil
}

// Get opens the object for reading.
func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	info, err := l.Head(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	path, err := l.pathFromKey(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotExist
		}
		return nil, ObjectInfo{}, err
	}
	return f, info, nil
}

// Head stats the object and reads its sidecar metadata.
func (l *Local) Head(ctx context.Context, key string) (ObjectInfo, error) {
	var zero ObjectInfo
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	path, err := l.pathFromKey(key)
	if err != nil {
		return zero, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, ErrNotExist
		}
		return zero, err
	}
	meta, err := l.readMeta(path)
	if err != nil {
		return zero, err
	}
	return ObjectInfo{Key: key, Size: stat.Size(), Meta: meta}, nil
}

// Delete removes the object and its sidecar.
func (l *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotExist
		}
		return err
	}
	_ = os.Remove(path + localMetaSuffix)
	return nil
}

// List walks the tree and returns every object with its metadata.
func (l *Local) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path == filepath.Join(l.root, localTmpDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, localMetaSuffix) {
			return nil
		}
		stat, err := d.Info()
		if err != nil {
			return err
		}
		meta, err := l.readMeta(path)
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: filepath.Base(path), Size: stat.Size(), Meta: meta})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Local) Close() error { return nil }

func (l *Local) writeMeta(objectPath string, meta Metadata) error {
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(objectPath+localMetaSuffix, raw, 0o644)
}

func (l *Local) readMeta(objectPath string) (Metadata, error) {
	raw, err := os.ReadFile(objectPath + localMetaSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("corrupt metadata for %s: %w", filepath.Base(objectPath), err)
	}
	return meta, nil
}

// pathFromKey fans objects out into two levels of prefix directories.
func (l *Local) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key")
	}
	if len(key) < 4 {
		return filepath.Join(l.root, key), nil
	}
	return filepath.Join(l.root, key[0:2], key[2:4], key), nil
}
