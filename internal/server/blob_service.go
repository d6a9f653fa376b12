package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"sort"
	"strconv"
	"time"

	"petal/internal/api"
	"petal/internal/models"
	"petal/internal/objstore"
)

// Metadata keys attached to every stored object.
const (
	metaKeyType     = "type"
	metaKeyOwner    = "owner"
	metaKeyUploaded = "uploaded"
	metaKeyExpires  = "expires"
)

const fallbackMediaType = "application/octet-stream"

// BlobServiceOptions configures a BlobService.
type BlobServiceOptions struct {
	PublicURL         string
	MaxSizeBytes      int64
	AllowedMediaTypes []string
	Retention         time.Duration
}

// BlobService implements blob admission, retrieval, ownership, and lifecycle
// on top of the object store. It holds no mutable state of its own.
type BlobService struct {
	store  objstore.Store
	logger *slog.Logger

	publicURL         string
	maxSizeBytes      int64
	allowedMediaTypes map[string]struct{}
	retention         time.Duration

	now func() time.Time
}

// NewBlobService constructs a BlobService. An empty media type allow-list
// admits every declared type.
func NewBlobService(store objstore.Store, opts BlobServiceOptions, logger *slog.Logger) *BlobService {
	if logger == nil {
		logger = slog.Default()
	}
	var allowed map[string]struct{}
	if len(opts.AllowedMediaTypes) > 0 {
		allowed = make(map[string]struct{}, len(opts.AllowedMediaTypes))
		for _, mt := range opts.AllowedMediaTypes {
			allowed[mt] = struct{}{}
		}
	}
	return &BlobService{
		store:             store,
		logger:            logger,
		publicURL:         opts.PublicURL,
		maxSizeBytes:      opts.MaxSizeBytes,
		allowedMediaTypes: allowed,
		retention:         opts.Retention,
		now:               time.Now,
	}
}

// MaxSizeBytes returns the configured upload size limit.
func (s *BlobService) MaxSizeBytes() int64 { return s.maxSizeBytes }

// AllowedMediaTypes returns the configured media type allow-list in sorted
// order, nil when every type is admitted.
func (s *BlobService) AllowedMediaTypes() []string {
	if len(s.allowedMediaTypes) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.allowedMediaTypes))
	for mt := range s.allowedMediaTypes {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// Retention returns the blob retention window.
func (s *BlobService) Retention() time.Duration { return s.retention }

// Admit validates and persists an upload for owner. Re-admission of content
// already stored returns the existing descriptor unchanged with created
// false; no metadata is rewritten and the recorded owner survives.
func (s *BlobService) Admit(ctx context.Context, r io.Reader, mediaType, owner string) (api.BlobDescriptor, bool, error) {
	var zero api.BlobDescriptor

	mediaType, err := normalizeMediaType(mediaType)
	if err != nil {
		return zero, false, err
	}
	if err := s.checkMediaType(mediaType); err != nil {
		return zero, false, err
	}

	var buf bytes.Buffer
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(&buf, h), io.LimitReader(r, s.maxSizeBytes+1))
	if err != nil {
		return zero, false, internalError(fmt.Errorf("read upload: %w", err))
	}
	if n > s.maxSizeBytes {
		return zero, false, payloadTooLarge(fmt.Errorf("blob exceeds %d bytes", s.maxSizeBytes))
	}
	hash := hex.EncodeToString(h.Sum(nil))

	// Dedup before writing. Two concurrent identical uploads can both miss
	// here; content is identical either way, but the recorded owner then
	// depends on which write wins in the store.
	existing, err := s.store.Head(ctx, hash)
	switch {
	case err == nil:
		return s.descriptor(blobFromInfo(existing)), false, nil
	case !errors.Is(err, objstore.ErrNotExist):
		return zero, false, storeFailure(err)
	}

	now := s.now().UTC().Truncate(time.Second)
	blob := models.Blob{
		SHA256:    hash,
		SizeBytes: n,
		MediaType: mediaType,
		Owner:     owner,
		Uploaded:  now,
		Expires:   now.Add(s.retention),
	}
	if err := s.store.Put(ctx, hash, &buf, n, metaFromBlob(blob)); err != nil {
		return zero, false, storeFailure(err)
	}
	return s.descriptor(blob), true, nil
}

// Fetch opens a blob's bytes by content hash. It does not evaluate expiry;
// an individually addressed blob past its window stays readable until the
// next listing sweep discovers it.
func (s *BlobService) Fetch(ctx context.Context, hash string) (io.ReadCloser, models.Blob, error) {
	var zero models.Blob
	hash, err := requireBlobHash(hash)
	if err != nil {
		return nil, zero, err
	}
	rc, info, err := s.store.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, objstore.ErrNotExist) {
			return nil, zero, notFound(fmt.Errorf("blob not found"))
		}
		return nil, zero, storeFailure(err)
	}
	return rc, blobFromInfo(info), nil
}

// Stat answers an existence check by content hash.
func (s *BlobService) Stat(ctx context.Context, hash string) (models.Blob, error) {
	var zero models.Blob
	hash, err := requireBlobHash(hash)
	if err != nil {
		return zero, err
	}
	info, err := s.store.Head(ctx, hash)
	if err != nil {
		if errors.Is(err, objstore.ErrNotExist) {
			return zero, notFound(fmt.Errorf("blob not found"))
		}
		return zero, storeFailure(err)
	}
	return blobFromInfo(info), nil
}

// ListByOwner enumerates the store and returns descriptors for pubkey's
// blobs. Expired blobs discovered during the scan are evicted as a side
// effect and never returned. Result order is store enumeration order.
func (s *BlobService) ListByOwner(ctx context.Context, pubkey string) ([]api.BlobDescriptor, error) {
	pubkey, err := requirePubKey(pubkey)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}

	now := s.now()
	out := make([]api.BlobDescriptor, 0)
	for _, info := range entries {
		blob := blobFromInfo(info)
		if blob.Expired(now) {
			s.evict(ctx, blob)
			continue
		}
		if blob.OwnedBy(pubkey) {
			out = append(out, s.descriptor(blob))
		}
	}
	return out, nil
}

// Delete removes a blob after checking that pubkey is its recorded owner.
func (s *BlobService) Delete(ctx context.Context, hash, pubkey string) error {
	blob, err := s.Stat(ctx, hash)
	if err != nil {
		return err
	}
	if !blob.OwnedBy(pubkey) {
		return forbidden(fmt.Errorf("pubkey does not own this blob"))
	}
	if err := s.store.Delete(ctx, blob.SHA256); err != nil {
		if errors.Is(err, objstore.ErrNotExist) {
			return notFound(fmt.Errorf("blob not found"))
		}
		return storeFailure(err)
	}
	return nil
}

// Sweep enumerates the full store and evicts every expired blob. Listing
// shares the same expiry predicate, so a dedicated periodic sweep and
// lazy eviction-on-scan stay in agreement.
func (s *BlobService) Sweep(ctx context.Context) (api.PruneResult, error) {
	var result api.PruneResult

	entries, err := s.store.List(ctx)
	if err != nil {
		return result, storeFailure(err)
	}

	now := s.now()
	for _, info := range entries {
		result.ScannedCount++
		blob := blobFromInfo(info)
		if !blob.Expired(now) {
			continue
		}
		result.ExpiredCount++
		if s.evict(ctx, blob) {
			result.DeletedCount++
			result.ReclaimedBytes += blob.SizeBytes
		} else {
			result.FailedCount++
		}
	}
	return result, nil
}

// evict deletes an expired blob, best effort. A failed delete leaves the
// entry for the next sweep.
func (s *BlobService) evict(ctx context.Context, blob models.Blob) bool {
	if err := s.store.Delete(ctx, blob.SHA256); err != nil && !errors.Is(err, objstore.ErrNotExist) {
		s.logger.Warn("evict expired blob", "sha256", blob.SHA256, "error", err)
		return false
	}
	s.logger.Debug("evicted expired blob", "sha256", blob.SHA256, "expired", blob.Expires)
	return true
}

func (s *BlobService) checkMediaType(mediaType string) error {
	if len(s.allowedMediaTypes) == 0 {
		return nil
	}
	if _, ok := s.allowedMediaTypes[mediaType]; ok {
		return nil
	}
	return unsupportedMediaType(fmt.Errorf("media type %q is not allowed", mediaType))
}

func (s *BlobService) descriptor(blob models.Blob) api.BlobDescriptor {
	return api.BlobDescriptor{
		URL:      s.publicURL + "/" + blob.SHA256 + extensionForType(blob.MediaType),
		SHA256:   blob.SHA256,
		Size:     blob.SizeBytes,
		Type:     blob.MediaType,
		Uploaded: blob.Uploaded.Unix(),
	}
}

func metaFromBlob(blob models.Blob) objstore.Metadata {
	meta := objstore.Metadata{
		metaKeyUploaded: strconv.FormatInt(blob.Uploaded.Unix(), 10),
		metaKeyExpires:  strconv.FormatInt(blob.Expires.Unix(), 10),
	}
	if blob.MediaType != "" {
		meta[metaKeyType] = blob.MediaType
	}
	if blob.Owner != "" {
		meta[metaKeyOwner] = blob.Owner
	}
	return meta
}

func blobFromInfo(info objstore.ObjectInfo) models.Blob {
	blob := models.Blob{
		SHA256:    info.Key,
		SizeBytes: info.Size,
		MediaType: fallbackMediaType,
	}
	if mt := info.Meta[metaKeyType]; mt != "" {
		blob.MediaType = mt
	}
	blob.Owner = info.Meta[metaKeyOwner]
	if ts, err := strconv.ParseInt(info.Meta[metaKeyUploaded], 10, 64); err == nil {
		blob.Uploaded = time.Unix(ts, 0).UTC()
	}
	if ts, err := strconv.ParseInt(info.Meta[metaKeyExpires], 10, 64); err == nil {
		blob.Expires = time.Unix(ts, 0).UTC()
	}
	return blob
}

// preferredExtensions pins stable extensions for common types; the system
// mime database is the fallback and unknown types get none.
var preferredExtensions = map[string]string{
	"image/png":        ".png",
	"image/jpeg":       ".jpg",
	"image/gif":        ".gif",
	"image/webp":       ".webp",
	"image/svg+xml":    ".svg",
	"video/mp4":        ".mp4",
	"video/webm":       ".webm",
	"audio/mpeg":       ".mp3",
	"audio/ogg":        ".ogg",
	"application/pdf":  ".pdf",
	"application/json": ".json",
	"text/plain":       ".txt",
	fallbackMediaType:  "",
}

func extensionForType(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
