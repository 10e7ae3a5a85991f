package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	conf "github.com/Baltuneedu/pdf-compress-app/internal/config"
)

// ErrAlreadyExists is returned by a non-overwriting upload when an object
// with the same key is already stored.
var ErrAlreadyExists = errors.New("object already exists")

// Storage is the object-store collaborator (R2 / any S3-compatible store).
// All calls are synchronous; the caller's context bounds them.
type Storage struct {
	AccountID          string
	Region             string // usually "auto" for R2
	AwsAccessKeyId     string
	AwsSecretAccessKey string
	Endpoint           string

	S3Client *s3.Client
	Uploader *manager.Uploader
}

func NewStorage(cfg *conf.BlobConfig) (*Storage, error) {
	st := &Storage{
		AccountID:          cfg.AccountID,
		Region:             "auto",
		AwsAccessKeyId:     cfg.AccessKeyID,
		AwsSecretAccessKey: cfg.SecretKey,
		Endpoint:           cfg.Endpoint,
	}
	if err := st.connect(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Storage) connect() error {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.AwsAccessKeyId, s.AwsSecretAccessKey, "",
		)),
		config.WithRegion(s.Region),
	)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.AccountID)
	}

	s.S3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	s.Uploader = manager.NewUploader(s.S3Client)
	return nil
}

func (s *Storage) Download(ctx context.Context, bucket, key string) ([]byte, string, error) {
	out, err := s.S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %q: %w", bucket+"/"+key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read body for %q: %w", key, err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	return buf.Bytes(), contentType, nil
}

// Upload stores payload under bucket/key. With overwrite false the write is
// conditional (If-None-Match: *) and an existing object yields
// ErrAlreadyExists instead of clobbering it.
func (s *Storage) Upload(ctx context.Context, bucket, key, contentType string, payload []byte, overwrite bool, cacheControl string) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	}
	if cacheControl != "" {
		in.CacheControl = aws.String(cacheControl)
	}
	if !overwrite {
		in.IfNoneMatch = aws.String("*")
	}

	if _, err := s.Uploader.Upload(ctx, in); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("upload %q: %w", bucket+"/"+key, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to upload %q: %w", bucket+"/"+key, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", bucket+"/"+key, err)
	}
	return nil
}
