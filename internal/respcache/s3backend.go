package respcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Backend is the optional remote large-object store a response cache
// entry's body can live in instead of the local rubber arena. The
// conditional-PUT race handling mirrors an OCI blob store's, since a
// cache entry here is content-addressed by its fingerprint the same way
// an OCI blob is addressed by its digest.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Backend creates a remote cache backend. Credentials, region, and
// endpoint resolve via the standard AWS SDK default credential chain.
func NewS3Backend(ctx context.Context, bucket, prefix string, forcePathStyle bool) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = forcePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}

	return &S3Backend{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Backend) fullKey(key string) string {
	return s.prefix + key
}

// Get fetches a cached body by fingerprint key.
func (s *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Put writes a cached body under fingerprint key. Race conditions are
// benign: entries are content-addressed by fingerprint, so a conflicting
// concurrent write is necessarily identical content (same method, URI,
// and vary tuple producing the same response).
func (s *S3Backend) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.fullKey(key)),
		Body:        strings.NewReader(string(body)),
		IfNoneMatch: aws.String("*"),
	},
		s3.WithAPIOptions(func(stack *middleware.Stack) error {
			return v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware(stack)
		}),
		func(o *s3.Options) {
			o.RetryMaxAttempts = 1
		},
	)
	if err != nil {
		if isConditionalPutConflict(err) {
			slog.Debug("cache entry already stored remotely, skipping duplicate upload", "key", key)
			return nil
		}
		return fmt.Errorf("putting cache entry to S3: %w", err)
	}
	return nil
}

// Remove deletes a cached body by fingerprint key.
func (s *S3Backend) Remove(ctx context.Context, key string) {
	_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
}

func isConditionalPutConflict(err error) bool {
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusPreconditionFailed ||
			re.HTTPStatusCode() == http.StatusConflict
	}
	return false
}
