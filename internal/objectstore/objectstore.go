// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

// Package objectstore provides S3-compatible blob storage for uploaded
// video files, plus presigned GET URLs for streaming playback. It works
// against AWS S3 or any compatible endpoint (MinIO) via the endpoint
// override.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pulsedev/pulsestream/internal/config"
)

// ObjectStore stores and serves video blobs.
type ObjectStore interface {
	// Put uploads a blob and returns its storage key.
	Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error)
	// SignedGetURL returns a time-limited URL for direct playback.
	SignedGetURL(ctx context.Context, key string) (string, error)
	// Delete removes a blob. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// S3Store implements ObjectStore on the AWS SDK v2 S3 client.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	urlTTL  time.Duration
}

// NewS3Store builds an S3-backed object store from configuration.
// Static credentials are used when configured, otherwise the default
// AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and most S3 clones require path-style addressing
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		urlTTL:  cfg.SignedURLTTL,
	}, nil
}

// StorageKey builds the bucket key for an uploaded file. Keys embed the
// upload timestamp so re-uploads of the same filename never collide.
func StorageKey(filename string) string {
	return fmt.Sprintf("videos/%d-%s", time.Now().UnixNano(), filename)
}

// Put uploads a blob under a timestamped key and returns the key.
func (s *S3Store) Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error) {
	key := StorageKey(name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return key, nil
}

// SignedGetURL returns a presigned GET URL for the stored blob.
func (s *S3Store) SignedGetURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}

	return req.URL, nil
}

// Delete removes a blob from the bucket.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
