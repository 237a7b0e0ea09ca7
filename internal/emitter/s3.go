package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// S3API defines the S3 operations used for report upload
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Emitter uploads each report as JSON to
// s3://bucket/prefix/yyyy/mm/dd/<run-id>.json
type S3Emitter struct {
	client S3API
	bucket string
	prefix string
	logger *telemetry.Logger
}

// NewS3Emitter creates an S3 report uploader.
func NewS3Emitter(client S3API, bucket, prefix string) *S3Emitter {
	return &S3Emitter{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: telemetry.NewLogger("emitter.s3"),
	}
}

// s3Report is the uploaded document
type s3Report struct {
	Environment string                     `json:"environment,omitempty"`
	Group       string                     `json:"group,omitempty"`
	Strategy    string                     `json:"strategy,omitempty"`
	DryRun      bool                       `json:"dry_run"`
	Run         *types.OrchestrationResult `json:"run"`
}

// Key returns the object key for a report.
func (e *S3Emitter) Key(report Report) string {
	day := report.Result.StartedAt.UTC().Format("2006/01/02")
	return path.Join(e.prefix, day, report.Result.RunID+".json")
}

// Emit uploads the report.
func (e *S3Emitter) Emit(ctx context.Context, report Report) error {
	body, err := json.MarshalIndent(s3Report{
		Environment: report.Environment,
		Group:       report.Group,
		Strategy:    report.Strategy,
		DryRun:      report.DryRun,
		Run:         report.Result,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	key := e.Key(report)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload report to s3://%s/%s: %w", e.bucket, key, err)
	}

	e.logger.WithContext(ctx).Debug().
		Str("bucket", e.bucket).
		Str("key", key).
		Msg("report uploaded")
	return nil
}

// Close is a no-op for the S3 emitter.
func (e *S3Emitter) Close() error {
	return nil
}
