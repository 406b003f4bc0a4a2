// Package s3util holds the S3 transfers shared by the CLI publisher and the
// Lambda handler.
package s3util

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// GetObjectAPI is the subset of *s3.Client used for downloads.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DownloadToFile downloads an S3 object to localPath. It logs through the
// logger attached to ctx.
func DownloadToFile(ctx context.Context, client GetObjectAPI, bucket, key, localPath string) error {
	zerolog.Ctx(ctx).Debug().Str("bucket", bucket).Str("key", key).Str("localPath", localPath).Msg("Downloading from S3")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	})
	if err != nil {
		return fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, result.Body); err != nil {
		f.Close()
		return fmt.Errorf("download: %w", err)
	}
	return f.Close()
}

// DownloadToTempFile downloads an S3 object into a new file under dir (the
// system temp dir when empty). The file keeps the object's base name so the
// video name derived from it matches the key. The cleanup function removes
// the file and its directory.
func DownloadToTempFile(ctx context.Context, client GetObjectAPI, bucket, key, dir string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp(dir, "s3dl-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	localPath := filepath.Join(tmpDir, filepath.Base(key))
	if err := DownloadToFile(ctx, client, bucket, key, localPath); err != nil {
		cleanup()
		return "", nil, err
	}
	return localPath, cleanup, nil
}
