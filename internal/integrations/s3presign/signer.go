package s3presign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"kendra-chatbot/internal/domain"
)

// presignAPI is the subset of *s3.PresignClient used by Signer.
type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Signer produces SigV4 query-string presigned URLs for single S3 objects.
// Signing is local; no request is sent to S3.
type Signer struct {
	api presignAPI
}

func New(api presignAPI) (*Signer, error) {
	if api == nil {
		return nil, errors.New("s3presign: api must not be nil")
	}
	return &Signer{api: api}, nil
}

// NewFromConfig builds a Signer over an S3 client for cfg's region and credentials.
func NewFromConfig(cfg aws.Config) *Signer {
	return &Signer{api: s3.NewPresignClient(s3.NewFromConfig(cfg))}
}

func (s *Signer) Sign(ctx context.Context, bucket, key string, action domain.Action, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("s3presign: ttl must be positive, got %s", ttl)
	}
	expires := s3.WithPresignExpires(ttl)

	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	switch action {
	case domain.ActionRead:
		req, err = s.api.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, expires)
	case domain.ActionWrite:
		req, err = s.api.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, expires)
	default:
		return "", fmt.Errorf("s3presign: unsupported action %q", action)
	}
	if err != nil {
		return "", fmt.Errorf("s3presign: presign %s s3://%s/%s: %w", action, bucket, key, err)
	}
	return req.URL, nil
}
