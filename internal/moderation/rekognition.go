// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/pulsedev/pulsestream/internal/config"
	"github.com/pulsedev/pulsestream/internal/metrics"
)

// RekognitionClient implements Client on AWS Rekognition's asynchronous
// video content-moderation API.
type RekognitionClient struct {
	api           *rekognition.Client
	bucket        string
	minConfidence float32
}

// NewRekognitionClient builds a Rekognition-backed moderation client.
// The bucket names where submitted objects live; minConfidence is the
// threshold below which detected labels are discarded by the provider.
func NewRekognitionClient(ctx context.Context, cfg config.ObjectStoreConfig, minConfidence float64) (*RekognitionClient, error) {
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

	return &RekognitionClient{
		api:           rekognition.NewFromConfig(awsCfg),
		bucket:        cfg.Bucket,
		minConfidence: float32(minConfidence),
	}, nil
}

// StartAnalysis submits the object for content moderation.
func (c *RekognitionClient) StartAnalysis(ctx context.Context, objectKey string) (string, error) {
	start := time.Now()
	out, err := c.api.StartContentModeration(ctx, &rekognition.StartContentModerationInput{
		Video: &types.Video{
			S3Object: &types.S3Object{
				Bucket: aws.String(c.bucket),
				Name:   aws.String(objectKey),
			},
		},
		MinConfidence: aws.Float32(c.minConfidence),
	})
	metrics.ModerationAPICallDuration.WithLabelValues("start").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("start content moderation: %w", err)
	}

	return aws.ToString(out.JobId), nil
}

// GetAnalysis polls the moderation job and maps the provider status to
// the package's job statuses. Label names are deduplicated while keeping
// first-seen order; the provider reports one detection per occurrence.
func (c *RekognitionClient) GetAnalysis(ctx context.Context, jobID string) (*JobResult, error) {
	start := time.Now()
	out, err := c.api.GetContentModeration(ctx, &rekognition.GetContentModerationInput{
		JobId: aws.String(jobID),
	})
	metrics.ModerationAPICallDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("get content moderation: %w", err)
	}

	result := &JobResult{StatusMessage: aws.ToString(out.StatusMessage)}

	switch out.JobStatus {
	case types.VideoJobStatusInProgress:
		result.Status = JobInProgress
	case types.VideoJobStatusSucceeded:
		result.Status = JobSucceeded
		result.Labels = collectLabels(out.ModerationLabels)
	case types.VideoJobStatusFailed:
		result.Status = JobFailed
	default:
		return nil, fmt.Errorf("unexpected job status %q", out.JobStatus)
	}

	return result, nil
}

func collectLabels(detections []types.ContentModerationDetection) []Label {
	seen := make(map[string]bool, len(detections))
	labels := make([]Label, 0, len(detections))

	for _, d := range detections {
		if d.ModerationLabel == nil {
			continue
		}
		name := aws.ToString(d.ModerationLabel.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		labels = append(labels, Label{
			Name:       name,
			Confidence: float64(aws.ToFloat32(d.ModerationLabel.Confidence)),
		})
	}

	return labels
}
