package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cmu-study-buddy/course-crawler/config"

	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	crd "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store is the bucket-backed artifact store. The existence check goes
// through HeadObject, keeping the same at-most-once-per-name guarantee as
// the filesystem store.
type S3Store struct {
	client *s3.Client
	cfg    *config.Config
}

func NewS3Store(cfg *config.Config) *S3Store {
	slog.Info("connecting to s3...")

	c, err := connect(cfg)
	if err != nil {
		slog.Error("failed to connect to s3.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return &S3Store{
		client: c,
		cfg:    cfg,
	}
}

func (s *S3Store) Exists(name string) bool {
	key := s.key(name)
	_, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: &s.cfg.S3Settings.BucketName,
		Key:    &key,
	})
	return err == nil
}

func (s *S3Store) Save(name string, r io.Reader) error {
	// PutObject needs a seekable body for request signing.
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	key := s.key(name)
	_, err = s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: &s.cfg.S3Settings.BucketName,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		slog.Error("failed to save artifact to s3.", slog.String("key", key),
			slog.String("err", err.Error()))
		return err
	}
	slog.Debug("artifact saved to s3.", slog.String("key", key))

	return nil
}

func (s *S3Store) Path(name string) string {
	return fmt.Sprintf("s3://%s/%s", s.cfg.S3Settings.BucketName, s.key(name))
}

func (s *S3Store) key(name string) string {
	return fmt.Sprintf("%s/%s", s.cfg.S3Settings.KeyPrefix, name)
}

func connect(cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsCfg.LoadDefaultConfig(context.Background(), awsCfg.WithRegion(cfg.S3Settings.Region))
	if err != nil {
		slog.Error("failed to load s3 config.", slog.String("err", err.Error()))
		return nil, err
	}

	if cfg.Env == "local" {
		s3Config.BaseEndpoint = &cfg.S3Settings.AwsBaseEndpoint // for LocalStack
		s3Config.Credentials = crd.NewStaticCredentialsProvider("test", "test", "")
		// LocalStack does not support the virtual host addressing style
		// that s3 uses by default.
		slog.Warn("test configuration for S3")
		return s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.UsePathStyle = true
		}), nil
	}

	return s3.NewFromConfig(s3Config), nil
}
