package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3 compatible bucket (AWS, R2, MinIO)
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS
	AccessKeyID     string // empty to use the default credential chain
	SecretAccessKey string
	PublicBaseURL   string // optional, used to build download links
	UsePathStyle    bool
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores snapshots in an S3 bucket
type S3Uploader struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
}

// NewS3Uploader builds an S3 client from cfg
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("invalid S3 configuration: bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("invalid S3 configuration: access key id and secret must be set together")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3Uploader(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3Uploader(client putObjectAPI, bucket, publicBaseURL string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, publicBaseURL: publicBaseURL}
}

// Upload puts the object and returns its public URL when one is configured
func (u *S3Uploader) Upload(ctx context.Context, key string, contentType string, body io.Reader) (*UploadResult, error) {
	out, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object (key: %s): %w", key, err)
	}

	result := &UploadResult{Key: key, Location: u.publicURL(key)}
	if out.ETag != nil {
		// S3 quotes ETags
		result.ETag = strings.Trim(*out.ETag, `"`)
	}
	return result, nil
}

func (u *S3Uploader) publicURL(key string) string {
	if u.publicBaseURL == "" {
		return fmt.Sprintf("s3://%s/%s", u.bucket, key)
	}
	joined, err := url.JoinPath(u.publicBaseURL, key)
	if err != nil {
		return ""
	}
	return joined
}
