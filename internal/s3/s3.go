// Package s3 fetches single objects from s3:// URLs through the same
// progress callback surface as the HTTP engine.
package s3

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/klauver/snatch/internal/dlerr"
	"github.com/klauver/snatch/internal/progress"
)

// ProgressFunc mirrors the HTTP client's callback contract.
type ProgressFunc func(progress.Snapshot) bool

// Fetcher downloads S3 objects with a shared-config AWS profile.
type Fetcher struct {
	client   *s3.Client
	partSize int64
}

func NewFetcher(ctx context.Context, profile string, partSize int64) (*Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithSharedConfigProfile(profile),
		awsconfig.WithRetryMode("adaptive"),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	if partSize <= 0 {
		partSize = 8 * 1024 * 1024
	}
	return &Fetcher{client: s3.NewFromConfig(cfg), partSize: partSize}, nil
}

// ParseURL splits s3://bucket/key into its parts.
func ParseURL(rawurl string) (bucket, key string, err error) {
	trimmed, ok := strings.CutPrefix(rawurl, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 URL: %s", rawurl)
	}
	bucket, key, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL must be s3://bucket/key, got %s", rawurl)
	}
	return bucket, key, nil
}

// Download fetches one object to outputPath, reporting progress through
// cb. Returning false from cb aborts the transfer.
func (f *Fetcher) Download(ctx context.Context, rawurl, outputPath string, cb ProgressFunc) (int64, error) {
	bucket, key, err := ParseURL(rawurl)
	if err != nil {
		return 0, dlerr.Wrap(dlerr.KindInvalidURL, err, "invalid s3 URL")
	}

	head, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("error getting object info for s3://%s/%s: %w", bucket, key, err)
	}
	size := int64(-1)
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	log.Debug().Str("op", "s3/download").Msgf("Object s3://%s/%s is %d bytes", bucket, key, size)

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, dlerr.Wrap(dlerr.KindFileOpenError, err, "cannot create output file %s", outputPath)
	}
	defer out.Close()

	w := &progressWriterAt{
		dst:         out,
		tracker:     progress.NewTracker(0, size),
		url:         rawurl,
		path:        outputPath,
		cb:          cb,
		minInterval: 100 * time.Millisecond,
	}
	downloader := manager.NewDownloader(f.client, func(d *manager.Downloader) {
		d.PartSize = f.partSize
	})
	n, err := downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if w.cancelled {
			return 0, dlerr.New(dlerr.KindCancelled, "cancelled by progress callback")
		}
		return 0, fmt.Errorf("error downloading s3://%s/%s: %w", bucket, key, err)
	}
	if cb != nil {
		cb(w.tracker.Snapshot(rawurl, outputPath))
	}
	log.Info().Str("op", "s3/download").Msgf("Download complete: %s (%d bytes)", outputPath, n)
	return n, nil
}

// progressWriterAt counts bytes as the transfer manager writes parts.
// The manager calls WriteAt from several goroutines, so the tracker is
// guarded here.
type progressWriterAt struct {
	dst         *os.File
	tracker     *progress.Tracker
	url, path   string
	cb          ProgressFunc
	minInterval time.Duration
	mu          sync.Mutex
	cancelled   bool
}

func (w *progressWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.dst.WriteAt(p, off)
	if n > 0 {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.tracker.Update(int64(n))
		if w.cb != nil && !w.cancelled && w.tracker.ShouldReport(w.minInterval) {
			if !w.cb(w.tracker.Snapshot(w.url, w.path)) {
				w.cancelled = true
				return n, fmt.Errorf("transfer cancelled")
			}
		}
	}
	return n, err
}
