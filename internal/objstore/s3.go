package objstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const s3MetaPrefix = "x-amz-meta-"

// S3Options configures an S3-compatible backend.
type S3Options struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3 stores objects in an S3-compatible bucket via minio-go. Object metadata
// travels as user metadata headers on each object.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 connects to the endpoint and ensures the bucket exists.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}
	return &S3{client: client, bucket: opts.Bucket}, nil
}

// Put uploads the object with its metadata attached as user metadata.
func (s *S3) Put(ctx context.Context, key string, r io.Reader, size int64, meta Metadata) error {
	putOpts := minio.PutObjectOptions{UserMetadata: map[string]string(meta.Clone())}
	if ct, ok := meta["type"]; ok {
		putOpts.ContentType = ct
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, putOpts)
	return err
}

// Get opens the object for reading.
func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	var zero ObjectInfo
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, zero, classifyS3Error(err)
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, zero, classifyS3Error(err)
	}
	return obj, infoFromS3(key, stat), nil
}

// Head stats the object.
func (s *S3) Head(ctx context.Context, key string) (ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, classifyS3Error(err)
	}
	return infoFromS3(key, stat), nil
}

// Delete removes the object. S3 deletes are idempotent, so a missing key is
// surfaced as ErrNotExist via a preceding stat.
func (s *S3) Delete(ctx context.Context, key string) error {
	if _, err := s.Head(ctx, key); err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// List enumerates the full bucket with metadata.
func (s *S3) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true, WithMetadata: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, infoFromS3(obj.Key, obj))
	}
	return out, nil
}

func (s *S3) Close() error { return nil }

func infoFromS3(key string, stat minio.ObjectInfo) ObjectInfo {
	meta := make(Metadata, len(stat.UserMetadata))
	for k, v := range stat.UserMetadata {
		k = strings.ToLower(k)
		k = strings.TrimPrefix(k, s3MetaPrefix)
		meta[k] = v
	}
	if len(meta) == 0 {
		meta = nil
	}
	return ObjectInfo{Key: key, Size: stat.Size, Meta: meta}
}

func classifyS3Error(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
		return ErrNotExist
	}
	return err
}
