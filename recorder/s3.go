package recorder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config holds S3 upload configuration.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// uploader is the subset of *manager.Uploader used here.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Exporter uploads artifacts to S3.
type S3Exporter struct {
	uploader uploader
	cfg      S3Config
	newID    func() string
}

// NewS3Exporter creates an uploader using credentials from cfg or the
// environment (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY), falling back to the
// default credential chain.
func NewS3Exporter(ctx context.Context, cfg S3Config) (*S3Exporter, error) {
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		slog.Info("s3 exporter using static credentials", "region", cfg.Region, "bucket", cfg.Bucket)
	} else {
		slog.Warn("s3 exporter using default credential chain")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)

	return &S3Exporter{
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 5 * 1024 * 1024
		}),
		cfg:   cfg,
		newID: uuid.NewString,
	}, nil
}

// Key returns the object key for a recording id: {prefix}/{id}/{name}.
func (e *S3Exporter) Key(id, name string) string {
	return path.Join(e.cfg.Prefix, id, name)
}

// Export uploads a and returns its object URL.
func (e *S3Exporter) Export(ctx context.Context, a Artifact) (string, error) {
	key := e.Key(e.newID(), a.Name)
	size := int64(len(a.Data))

	_, err := e.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(a.Data),
		ContentType:   aws.String(a.MIMEType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", e.cfg.Bucket, e.cfg.Region, key)
	slog.Info("recording uploaded", "url", url, "bytes", size)
	return url, nil
}
