package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"luxemap/estates/internal/config"
	"luxemap/estates/internal/logging"
)

// IS3Storage stores gallery images.
type IS3Storage interface {
	// PutImage uploads an image for a property and returns its public URL.
	PutImage(ctx context.Context, propertyID, contentType string, data []byte) (string, error)
}

// s3API is the subset of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Storage struct {
	bucket  string
	baseURL string
	client  s3API
}

// NewS3Storage creates an S3-backed IS3Storage from static credentials.
func NewS3Storage(ctx context.Context, cfg *config.Config) (IS3Storage, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is not set")
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx,
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	baseURL := cfg.ImageBaseS3URL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AwsS3Bucket, cfg.AwsRegion)
	}
	return newS3Storage(s3.NewFromConfig(awsCfg), cfg.AwsS3Bucket, baseURL), nil
}

func newS3Storage(client s3API, bucket, baseURL string) *s3Storage {
	return &s3Storage{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func (s *s3Storage) PutImage(ctx context.Context, propertyID, contentType string, data []byte) (string, error) {
	key := path.Join("enhanced", propertyID, uuid.NewString()+extensionFor(contentType))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	logging.Logger.Debugf("Uploaded enhanced image %s (%d bytes)", key, len(data))
	return s.baseURL + "/" + key, nil
}
