package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ContentType is the content type of exported objects.
const ContentType = "text/markdown; charset=utf-8"

// S3Client is the subset of *s3.Client used by S3Exporter.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures NewS3FromConfig.
type S3Config struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint selects an S3-compatible service such as MinIO. Setting it
	// also switches to path-style addressing.
	Endpoint string

	// AccessKeyID and SecretKey are optional static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID string
	SecretKey   string
}

// S3Exporter writes documents to an S3 bucket.
type S3Exporter struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 creates an S3Exporter using client.
func NewS3(client S3Client, bucket, prefix string) *S3Exporter {
	return &S3Exporter{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// NewS3FromConfig loads the AWS configuration and creates an S3Exporter.
func NewS3FromConfig(ctx context.Context, cfg S3Config) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("export: bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("export: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3(client, cfg.Bucket, cfg.Prefix), nil
}

// Export implements Exporter. The object key is
// <prefix><session id>/<unix nanos>.md.
func (e *S3Exporter) Export(ctx context.Context, doc Document) (Location, error) {
	key := e.Key(doc)

	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(doc.Content),
		ContentType: aws.String(ContentType),
		Metadata: map[string]string{
			"session-id": doc.SessionID,
			"version":    strconv.FormatUint(doc.Version, 10),
		},
	})
	if err != nil {
		return Location{}, classifyS3Error(err)
	}

	return Location{Bucket: e.bucket, Key: key, Size: len(doc.Content)}, nil
}

// Key returns the object key for doc.
func (e *S3Exporter) Key(doc Document) string {
	return e.prefix + doc.SessionID + "/" + strconv.FormatInt(doc.Time.UnixNano(), 10) + ".md"
}

func classifyS3Error(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("export: put object: %w", err)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("export: put object (code: %s): %w", apiErr.ErrorCode(), err)
	}

	return fmt.Errorf("export: put object: %w", err)
}
