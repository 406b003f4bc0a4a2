package s3util

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// PutObjectAPI is the subset of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UploadFile uploads localPath to bucket/key with the project tag.
func UploadFile(ctx context.Context, client PutObjectAPI, bucket, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:  &bucket,
		Key:     &key,
		Body:    f,
		Tagging: ProjectTagging(),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", localPath, bucket, key, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("bucket", bucket).
		Str("key", key).
		Msg("File uploaded to S3")
	return nil
}

// URI renders an s3:// URI.
func URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
