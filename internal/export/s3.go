package export

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/matsen/gap/internal/config"
	"go.uber.org/zap"
)

// objectPutter is the part of the S3 client the publisher uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads export files to an S3 bucket.
type Publisher struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Client creates an S3 client. A custom endpoint (MinIO, Ceph, ...)
// switches to path-style addressing; without static keys the default
// credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewPublisher creates a publisher for the configured bucket.
func NewPublisher(client objectPutter, cfg config.S3Config, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}
}

// PublishDir uploads every file below dir, keyed by prefix plus its
// slash-separated path relative to dir. It returns the number of uploads.
func (p *Publisher) PublishDir(ctx context.Context, dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		key := path.Join(p.prefix, filepath.ToSlash(rel))
		if err := p.upload(ctx, file, key); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("publishing %s: %w", dir, err)
	}
	p.logger.Info("published export", zap.String("bucket", p.bucket), zap.String("prefix", p.prefix), zap.Int("files", n))
	return n, nil
}

func (p *Publisher) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if filepath.Ext(file) == ".csv" {
		input.ContentType = aws.String("text/csv")
	}
	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	p.logger.Debug("uploaded", zap.String("key", key))
	return nil
}
