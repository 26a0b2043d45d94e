// Package blobstore stores small text blobs in an S3 bucket and exposes their
// ETags so callers can cache content and detect changes cheaply.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const maxBlobSize = 1 << 20

// ErrNotFound is returned when the key does not exist in the bucket.
var ErrNotFound = errors.New("blobstore: key not found")

// s3API is the minimal S3 interface required by Store.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Blob is a stored value and its version tag.
type Blob struct {
	Content string
	ETag    string
}

// Metadata describes a stored value without its content.
type Metadata struct {
	ETag string
	Size int64
}

// Store reads and writes blobs under a single bucket and optional key prefix.
type Store struct {
	api    s3API
	bucket string
	prefix string
}

type Option func(*Store)

// WithPrefix namespaces every key, e.g. "chatbot/".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	}
}

func New(api s3API, bucket string, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, errors.New("blobstore: api must not be nil")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("blobstore: bucket must not be empty")
	}
	s := &Store{api: api, bucket: bucket}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) objectKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("blobstore: key is required")
	}
	return s.prefix + key, nil
}

// Get fetches the value and its ETag.
func (s *Store) Get(ctx context.Context, key string) (Blob, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return Blob{}, err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, fmt.Errorf("blobstore: get %q: %w", objKey, err)
	}
	defer func() { _ = out.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(out.Body, maxBlobSize))
	if err != nil {
		return Blob{}, fmt.Errorf("blobstore: read %q: %w", objKey, err)
	}
	return Blob{Content: string(buf), ETag: aws.ToString(out.ETag)}, nil
}

// Metadata returns the current ETag and size without downloading the value.
func (s *Store) Metadata(ctx context.Context, key string) (Metadata, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return Metadata{}, err
	}
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return Metadata{}, ErrNotFound
		}
		return Metadata{}, fmt.Errorf("blobstore: head %q: %w", objKey, err)
	}
	return Metadata{ETag: aws.ToString(out.ETag), Size: aws.ToInt64(out.ContentLength)}, nil
}

// Set writes the value and returns the new ETag.
func (s *Store) Set(ctx context.Context, key, content string) (string, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}
	out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("blobstore: put %q: %w", objKey, err)
	}
	return aws.ToString(out.ETag), nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
