package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 returns an S3-backed store. Objects are written under
// prefix + key + ".rec".
func NewS3(ctx context.Context, cfg core.S3Config) (Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket not specified", core.ErrInvalidInput)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Backend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *s3Backend) Name() string { return "s3" }
func (s *s3Backend) Close() error { return nil }

func (s *s3Backend) objectKey(key string) string {
	return s.prefix + key + ".rec"
}

func (s *s3Backend) Put(ctx context.Context, key string, val []byte) error {
	k := s.objectKey(key)

	// Present objects are never rewritten; skip the upload.
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	}); err == nil {
		return nil
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k),
		Body:        bytes.NewReader(val),
		ContentType: aws.String("application/cbor"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (s *s3Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	val, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("s3 read %s: %w", key, err)
	}
	return val, true, nil
}

func (s *s3Backend) Iterate(ctx context.Context, fn func(key string, val []byte) error) error {
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if !strings.HasSuffix(name, ".rec") {
				continue
			}
			key := strings.TrimSuffix(name, ".rec")
			val, ok, err := s.Get(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
	}
	return nil
}
