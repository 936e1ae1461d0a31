package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStorage stores binary objects and hands out temporary read URLs
type ObjectStorage interface {
	Upload(ctx context.Context, file io.Reader, objectKey string, contentType string) (string, error)
	PresignedURL(ctx context.Context, objectKey string) (string, error)
}

// S3Storage is an ObjectStorage backed by a single S3 bucket
type S3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
}

// NewS3Storage initializes the S3 client
func NewS3Storage(ctx context.Context, region, bucket string) (*S3Storage, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	client := s3.NewFromConfig(cfg)
	log.Println("S3 Client Initialized")
	return &S3Storage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        bucket,
	}, nil
}

// Upload uploads a file to S3 and returns the Object Key
func (s *S3Storage) Upload(ctx context.Context, file io.Reader, objectKey string, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %v", err)
	}

	return objectKey, nil
}

// PresignedURL generates a presigned URL for an object
func (s *S3Storage) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	request, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(1*time.Hour))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %v", err)
	}

	return request.URL, nil
}

// IsStoredObjectKey reports whether an avatar value refers to an object in
// storage rather than an inline data URL or an external link.
func IsStoredObjectKey(value string) bool {
	return value != "" && !strings.HasPrefix(value, "data:") && !strings.HasPrefix(value, "http")
}

// DecodeDataURL splits a base64 data URL ("data:image/png;base64,....") into
// its content type and payload.
func DecodeDataURL(value string) (string, *bytes.Reader, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data URL")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data URL is not base64 encoded")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return contentType, bytes.NewReader(data), nil
}

// ExtensionForContentType maps common image types to a file extension.
func ExtensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
