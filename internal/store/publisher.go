package store

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/fpang/tooltrace/internal/s3util"
)

// S3Publisher uploads dataset files under {prefix}/runs/{runID}/.
type S3Publisher struct {
	client s3util.PutObjectAPI
	bucket string
	prefix string
}

// NewS3Publisher returns a publisher for bucket. prefix may be empty.
func NewS3Publisher(client s3util.PutObjectAPI, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a file name within a run.
func (p *S3Publisher) Key(runID, name string) string {
	return path.Join(p.prefix, "runs", runID, name)
}

// Publish uploads localPath and returns its s3:// URI.
func (p *S3Publisher) Publish(ctx context.Context, runID, localPath string) (string, error) {
	key := p.Key(runID, filepath.Base(localPath))
	if err := s3util.UploadFile(ctx, p.client, p.bucket, key, localPath, contentType(localPath)); err != nil {
		return "", err
	}
	return s3util.URI(p.bucket, key), nil
}

// PublishAs uploads localPath to an explicit key.
func (p *S3Publisher) PublishAs(ctx context.Context, key, localPath string) (string, error) {
	if err := s3util.UploadFile(ctx, p.client, p.bucket, key, localPath, contentType(localPath)); err != nil {
		return "", err
	}
	return s3util.URI(p.bucket, key), nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return "application/gzip"
	case ".zst":
		return "application/zstd"
	default:
		return "text/csv"
	}
}
