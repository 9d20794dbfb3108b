// Package archive keeps audit copies of run artifacts in S3-compatible
// storage so rejected batches can be inspected and replayed by hand.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/openvital/smartva-bridge/internal/config"
	"github.com/openvital/smartva-bridge/internal/pkg/logger"
)

var log = logger.Component("archive")

// S3Archiver uploads the raw and classified CSVs of each run under
// runs/<yyyy>/<mm>/<dd>/<runID>/.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Archiver builds an archiver from config. Returns (nil, nil) when
// archiving is disabled; callers skip a nil archiver.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

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

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// A custom endpoint means MinIO or another on-prem store, which
		// needs path-style addressing.
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}, nil
}

// Store uploads each named file. Failures are logged and swallowed:
// archiving never changes a run's outcome.
func (a *S3Archiver) Store(ctx context.Context, runID string, paths ...string) {
	day := a.now().UTC().Format("2006/01/02")
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := a.upload(ctx, day, runID, p); err != nil {
			log.Warn("archiving run artifact", "run_id", runID, "file", p, "error", err)
		}
	}
}

func (a *S3Archiver) upload(ctx context.Context, day, runID, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	key := path.Join(a.prefix, "runs", day, runID, filepath.Base(file))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}

	log.Info("artifact archived", "bucket", a.bucket, "key", key)
	return nil
}
