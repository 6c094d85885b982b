package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader stores one archive object. S3Uploader is the production
// implementation; tests substitute fakes.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

// S3Config configures the S3 uploader
type S3Config struct {
	Bucket string
	Region string
	// Endpoint overrides the S3 endpoint, for MinIO or localstack
	Endpoint string
	// AccessKey and SecretKey select static credentials; leave empty to use
	// the default credential chain.
	AccessKey string
	SecretKey string
}

// S3Uploader uploads archive objects to S3
type S3Uploader struct {
	client *s3.Client
	bucket string
}

// NewS3Uploader creates an uploader and ensures the bucket exists
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	var (
		awsCfg aws.Config
		err    error
	)
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey, cfg.SecretKey, "",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}
	return &S3Uploader{client: client, bucket: cfg.Bucket}, nil
}

// Upload implements Uploader. A SHA256 checksum travels with the object as
// metadata.
func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	hash := sha256.Sum256(body)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"checksum-sha256": hex.EncodeToString(hash[:]),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", key, err)
	}
	return nil
}

// HealthCheck verifies bucket connectivity
func (u *S3Uploader) HealthCheck(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.bucket)})
	if err != nil {
		return fmt.Errorf("archive bucket health check failed: %w", err)
	}
	return nil
}

func ensureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil && !isBucketExistsError(err) {
		return fmt.Errorf("failed to create archive bucket %s: %w", bucket, err)
	}
	return nil
}

func isBucketExistsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "BucketAlreadyExists") || strings.Contains(msg, "BucketAlreadyOwnedByYou")
}
