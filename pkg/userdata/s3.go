package userdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Adapter stores each record as a JSON object in an S3 bucket.
// Suitable as the account backend when no relational database is available;
// each identity maps to one object at "<prefix><identityID>.json".
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	adapter := userdata.NewS3Adapter(s3.NewFromConfig(cfg), "reeldeck-userdata")
type S3Adapter struct {
	client S3Client
	bucket string
	prefix string
	closed bool
}

// S3Client is the subset of the aws-sdk-go-v2 S3 client the adapter uses.
// Narrowed for testability.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3AdapterOption configures S3Adapter behavior.
type S3AdapterOption func(*s3AdapterConfig)

type s3AdapterConfig struct {
	prefix string
}

// WithS3Prefix sets the object key prefix.
// Default: "userdata/".
func WithS3Prefix(prefix string) S3AdapterOption {
	return func(c *s3AdapterConfig) {
		c.prefix = prefix
	}
}

// NewS3Adapter creates a new S3-backed user-data adapter.
func NewS3Adapter(client S3Client, bucket string, opts ...S3AdapterOption) *S3Adapter {
	cfg := &s3AdapterConfig{
		prefix: "userdata/",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &S3Adapter{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
	}
}

// key returns the object key for an identity.
func (a *S3Adapter) key(identityID string) string {
	return a.prefix + identityID + ".json"
}

// Load retrieves the record for an identity, or (nil, nil) if absent.
func (a *S3Adapter) Load(ctx context.Context, identityID string) (*Record, error) {
	if a.closed {
		return nil, ErrAdapterClosed{}
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(identityID)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 load failed: %w", err)
	}
	defer out.Body.Close()

	doc, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read failed: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode user-data document: %w", err)
	}
	return &rec, nil
}

// Save uploads the full record document for an identity.
func (a *S3Adapter) Save(ctx context.Context, identityID string, rec *Record) error {
	if a.closed {
		return ErrAdapterClosed{}
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode user-data document: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(identityID)),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 save failed: %w", err)
	}
	return nil
}

// Delete removes the object for an identity.
func (a *S3Adapter) Delete(ctx context.Context, identityID string) error {
	if a.closed {
		return ErrAdapterClosed{}
	}

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(identityID)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

// Close marks the adapter as closed.
// Note: This does not close the underlying S3 client.
func (a *S3Adapter) Close() error {
	a.closed = true
	return nil
}

// isS3NotFound reports whether err indicates a missing object.
func isS3NotFound(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}
