// Package storage issues upload URLs for cast images and resolves stored
// images to URLs Farcaster clients can fetch.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

const (
	uploadURLTTL = 15 * time.Minute
	readURLTTL   = 7 * 24 * time.Hour
)

// Options configures the S3 compatible bucket.  Endpoint is empty for AWS
// and set for MinIO style deployments, which also switches to path style
// addressing.
type Options struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

type objectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store is the object store for cast images.
type S3Store struct {
	bucket     string
	publicBase string
	objects    objectAPI
	presign    presigner
	now        func() time.Time
}

// New builds the S3 client.  No request is made until the first call.
func New(ctx context.Context, o Options) (*S3Store, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	return &S3Store{
		bucket:     o.Bucket,
		publicBase: strings.TrimRight(o.PublicBaseURL, "/"),
		objects:    client,
		presign:    s3.NewPresignClient(client),
		now:        time.Now,
	}, nil
}

func (s *S3Store) newKey() string {
	d := s.now().UTC()
	return fmt.Sprintf("casts/%d/%02d/%s", d.Year(), d.Month(), uuid.NewString())
}

// UploadURL reserves a storage id and returns a short lived presigned PUT
// URL for it.  The id is what callers later attach to a cast.
func (s *S3Store) UploadURL(ctx context.Context, contentType string) (string, string, error) {
	key := s.newKey()
	in := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := s.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(uploadURLTTL))
	if err != nil {
		return "", "", fmt.Errorf("presign put: %w", err)
	}
	return key, req.URL, nil
}

// PublicURL resolves a storage id to a fetchable URL, or "" when no object
// was ever uploaded under it.
func (s *S3Store) PublicURL(ctx context.Context, storageID string) (string, error) {
	_, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageID),
	})
	if isNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("head object %s: %w", storageID, err)
	}
	if s.publicBase != "" {
		return s.publicBase + "/" + storageID, nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageID),
	}, s3.WithPresignExpires(readURLTTL))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
