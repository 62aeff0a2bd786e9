package doctors

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3PhotoStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PhotoStore uploads doctor photos to a bucket.
type S3PhotoStore struct {
	client  S3API
	bucket  string
	baseURL string
}

// NewS3PhotoStore creates a store. publicBaseURL is prefixed to object keys to
// build the returned URL; when empty the virtual-hosted S3 URL is used.
func NewS3PhotoStore(client S3API, bucket, region, publicBaseURL string) *S3PhotoStore {
	if client == nil {
		panic("doctors: s3 client cannot be nil")
	}
	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3PhotoStore{client: client, bucket: bucket, baseURL: base}
}

func (s *S3PhotoStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return "", fmt.Errorf("doctors: s3 put %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}
