package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/singleflight"
)

// S3API is the subset of *s3.Client used by S3Source.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves objects from an S3 bucket under a key prefix.
//
// Example usage:
//
//	client := content.NewS3Client(content.S3ClientOptions{Region: "eu-west-1"})
//	src := content.NewS3Source(client, "my-bucket", "site/")
type S3Source struct {
	client  S3API
	bucket  string
	prefix  string
	maxSize int64
	fetches singleflight.Group

	mu           sync.RWMutex
	contentTypes map[string]string // key -> Content-Type reported by S3
}

// NewS3Source creates a source reading bucket/prefix+path.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{
		client:       client,
		bucket:       bucket,
		prefix:       prefix,
		maxSize:      32 << 20,
		contentTypes: make(map[string]string),
	}
}

// WithMaxSize sets the largest object Get will read.
func (s *S3Source) WithMaxSize(n int64) *S3Source {
	s.maxSize = n
	return s
}

func (s *S3Source) key(urlPath string) (string, bool) {
	rel, ok := RelPath(urlPath)
	if !ok {
		return "", false
	}
	return s.prefix + rel, true
}

// Exists issues a HeadObject for urlPath.
func (s *S3Source) Exists(ctx context.Context, urlPath string) bool {
	key, ok := s.key(urlPath)
	if !ok {
		return false
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false
	}
	s.rememberType(key, out.ContentType)
	return true
}

// Get downloads the object for urlPath. Concurrent requests for the same
// key share one download.
func (s *S3Source) Get(ctx context.Context, urlPath string) ([]byte, error) {
	key, ok := s.key(urlPath)
	if !ok {
		return nil, ErrNotFound
	}

	v, err, _ := s.fetches.Do(key, func() (any, error) {
		return s.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *S3Source) fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("content: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	s.rememberType(key, out.ContentType)

	data, err := io.ReadAll(io.LimitReader(out.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("content: s3 read %s: %w", key, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("content: s3 object %s exceeds %d bytes", key, s.maxSize)
	}
	return data, nil
}

// MimeType prefers the Content-Type stored with the object.
func (s *S3Source) MimeType(urlPath string) string {
	if key, ok := s.key(urlPath); ok {
		s.mu.RLock()
		t := s.contentTypes[key]
		s.mu.RUnlock()
		if t != "" {
			return t
		}
	}
	return MimeType(urlPath)
}

func (s *S3Source) rememberType(key string, contentType *string) {
	if contentType == nil || *contentType == "" {
		return
	}
	s.mu.Lock()
	s.contentTypes[key] = *contentType
	s.mu.Unlock()
}
