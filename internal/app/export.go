package app

import (
	"context"
	"fmt"

	"go.aimuz.me/commentator/config"
	"go.aimuz.me/commentator/recorder"
)

// NewExporter builds the recording exporter: a local file always, plus S3
// when a bucket is configured.
func NewExporter(ctx context.Context, rc config.RecordingConfig) (recorder.Exporter, error) {
	file := recorder.FileExporter{Dir: rc.OutputDir}
	if rc.S3Bucket == "" {
		return file, nil
	}

	s3, err := recorder.NewS3Exporter(ctx, recorder.S3Config{
		Region: rc.S3Region,
		Bucket: rc.S3Bucket,
		Prefix: rc.S3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 exporter: %w", err)
	}
	return recorder.MultiExporter{file, s3}, nil
}
