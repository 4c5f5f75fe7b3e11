package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/apperr"
)

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL is the base the hosted files are served from. When empty the
	// URL is derived from the endpoint or the AWS virtual-host form.
	PublicURL string
	Folder    string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores posters in an S3-compatible bucket.
type S3 struct {
	client objectPutter
	opts   S3Options
	logger *zap.Logger
}

func NewS3(ctx context.Context, opts S3Options, logger *zap.Logger) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for the s3 image host")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{client: client, opts: opts, logger: logger}, nil
}

func (s *S3) Upload(ctx context.Context, img Image) (*Asset, error) {
	ctx, span := tracer.Start(ctx, "s3 upload")
	defer span.End()

	key := path.Join(strings.Trim(s.opts.Folder, "/"), img.FileName)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentType:   aws.String(img.ContentType),
		ContentLength: aws.Int64(int64(len(img.Data))),
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("s3 put object failed", zap.String("key", key), zap.Error(err))
		return nil, apperr.UploadFailed("Image upload failed", map[string]any{"message": err.Error()})
	}

	url := s.objectURL(key)
	s.logger.Info("image uploaded", zap.String("url", url), zap.String("key", key))
	return &Asset{URL: url, FileID: key}, nil
}

func (s *S3) objectURL(key string) string {
	switch {
	case s.opts.PublicURL != "":
		return strings.TrimRight(s.opts.PublicURL, "/") + "/" + key
	case s.opts.Endpoint != "":
		return strings.TrimRight(s.opts.Endpoint, "/") + "/" + s.opts.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
	}
}
