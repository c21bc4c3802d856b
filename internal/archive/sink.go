// Package archive copies delivered order assets into long-term storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Sink stores objects under slash-separated keys.
type Sink interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// URI returns the address of key inside the sink, e.g. s3://bucket/key.
	URI(key string) string
}

// uploader is the subset of *manager.Uploader used by S3Sink.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink uploads to a single bucket through the multipart upload manager.
type S3Sink struct {
	bucket   string
	uploader uploader
}

// NewS3Sink builds a sink from the default AWS credential chain.
func NewS3Sink(ctx context.Context, bucket, region string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3SinkWithClient(bucket, s3.NewFromConfig(cfg)), nil
}

// NewS3SinkWithClient wraps an existing S3 client.
func NewS3SinkWithClient(bucket string, client manager.UploadAPIClient) *S3Sink {
	return &S3Sink{bucket: bucket, uploader: manager.NewUploader(client)}
}

func (s *S3Sink) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Sink) URI(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// LocalSink writes objects below a directory. Each file appears atomically.
type LocalSink struct {
	root string
}

func NewLocalSink(root string) *LocalSink {
	return &LocalSink{root: root}
}

func (s *LocalSink) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes archive root", key)
	}
	return p, nil
}

func (s *LocalSink) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *LocalSink) URI(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
