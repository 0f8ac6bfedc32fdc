package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ArchiverParams configures an S3-compatible archive target.
type S3ArchiverParams struct {
	Region    string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Archiver uploads reports to {prefix}/{recording_id}/{timestamp}/.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Archiver(ctx context.Context, params S3ArchiverParams) (*S3Archiver, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(params.Region)}
	if params.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(params.Endpoint))
	}
	if params.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(params.AccessKey, params.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &S3Archiver{client: client, bucket: params.Bucket, prefix: params.Prefix}, nil
}

func (a *S3Archiver) keyFor(item ArchiveItem, name string) string {
	return path.Join(a.prefix, item.RecordingID, item.CreatedAt.UTC().Format(versionLayout), name)
}

// Archive uploads every file in item and a summary.json; it returns the
// s3:// location of the version folder.
func (a *S3Archiver) Archive(ctx context.Context, item ArchiveItem) (string, error) {
	for _, p := range item.Files {
		content, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", p, err)
		}
		if err := a.put(ctx, a.keyFor(item, filepath.Base(p)), content); err != nil {
			return "", err
		}
	}

	meta, err := item.summaryJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := a.put(ctx, a.keyFor(item, "summary.json"), meta); err != nil {
		return "", err
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, path.Dir(a.keyFor(item, "summary.json"))), nil
}

func (a *S3Archiver) put(ctx context.Context, key string, content []byte) error {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return nil
}
