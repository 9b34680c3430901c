// Package aws defines functions used to interact with S3 compatible storage
package aws

import (
	"bitwise74/cardio-api/config"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Parts are only used once a body grows past one part
const (
	uploadPartSize    = 6 << 20
	uploadConcurrency = 5
)

type S3Client struct {
	C        *s3.Client
	Presign  *s3.PresignClient
	Uploader *manager.Uploader
	Bucket   *string
}

// NewS3 connects to the configured bucket. A custom endpoint (Cloudflare R2,
// MinIO) switches to path style addressing.
func NewS3(ctx context.Context, c config.StorageConfig) (*S3Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(c.Bucket)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Region = c.Region
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	s := &S3Client{
		C:       client,
		Presign: s3.NewPresignClient(client),
		Uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.Concurrency = uploadConcurrency
			u.PartSize = uploadPartSize
		}),
		Bucket: bucket,
	}

	if err := s.Ping(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Ping checks that the bucket exists and is reachable
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.C.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: s.Bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return fmt.Errorf("bucket '%s' does not exist", *s.Bucket)
			}
		}

		return fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return nil
}

// Upload streams body under key. Bodies bigger than one part go up as a
// multipart upload.
func (s *S3Client) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      s.Bucket,
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s, %w", key, err)
	}

	return nil
}

// PresignGet returns a time limited download URL for key
func (s *S3Client) PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	req, err := s.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     s.Bucket,
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", filename)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s, %w", key, err)
	}

	return req.URL, nil
}

// DeleteOlderThan removes every object under prefix last modified before
// cutoff and returns how many were deleted
func (s *S3Client) DeleteOlderThan(ctx context.Context, prefix string, cutoff time.Time) (int, error) {
	var keys []string

	p := s3.NewListObjectsV2Paginator(s.C, &s3.ListObjectsV2Input{
		Bucket: s.Bucket,
		Prefix: aws.String(prefix),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list %s, %w", prefix, err)
		}

		for _, o := range page.Contents {
			if o.LastModified != nil && o.LastModified.Before(cutoff) {
				keys = append(keys, aws.ToString(o.Key))
			}
		}
	}

	deleted := 0

	// S3 can delete at most 1000 objects in one batch request
	for start := 0; start < len(keys); start += 1000 {
		end := min(start+1000, len(keys))

		objects := make([]types.ObjectIdentifier, end-start)
		for i, key := range keys[start:end] {
			objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		out, err := s.C.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: s.Bucket,
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete objects, %w", err)
		}

		deleted += len(objects) - len(out.Errors)
	}

	return deleted, nil
}
