package storage

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 stores managed files as objects in a single bucket under an optional
// key prefix. Credentials come from the default AWS credentials chain.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// S3Config holds explicit construction parameters.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // optional; enables a custom endpoint (e.g. MinIO)
}

// NewS3 creates an S3 storage backend.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// Move uploads the local file and removes it, returning the object key
// relative to the prefix.
func (s *S3) Move(src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", src, err)
	}
	name := storedName(src)
	_, err = s.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   f,
	})
	f.Close()
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("removing source %s: %w", src, err)
	}
	return name, nil
}

// Delete removes the object. Deleting a missing object is not an error in
// S3.
func (s *S3) Delete(name string) error {
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", name, err)
	}
	return nil
}

// Path returns the object URI.
func (s *S3) Path(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

func (s *S3) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
