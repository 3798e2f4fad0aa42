// Package s3 uploads run artifacts (spreadsheet, map) to an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads files under <prefix>/<run id>/<file name>.
type Archiver struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewArchiver creates an archiver. If endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewArchiver(ctx context.Context, bucket, prefix, region, endpoint string, logger *slog.Logger) (*Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &Archiver{
		client: s3.NewFromConfig(cfg, opts...),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Archive uploads each non-empty path and returns the object keys written.
// It stops at the first failure.
func (a *Archiver) Archive(ctx context.Context, runID string, paths ...string) ([]string, error) {
	var keys []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		key := ObjectKey(a.prefix, runID, p)
		if err := a.put(ctx, key, p); err != nil {
			return keys, err
		}
		a.logger.Info("artifact archived", "bucket", a.bucket, "key", key, "run_id", runID)
		keys = append(keys, key)
	}
	return keys, nil
}

func (a *Archiver) put(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	in := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := contentType(file); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := a.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

// ObjectKey joins the prefix, run ID and file base name with slashes.
func ObjectKey(prefix, runID, file string) string {
	return path.Join(prefix, runID, filepath.Base(file))
}

func contentType(file string) string {
	ext := filepath.Ext(file)
	if ext == ".xlsx" {
		return xlsxContentType
	}
	return mime.TypeByExtension(ext)
}
