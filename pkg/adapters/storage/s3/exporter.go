package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Config holds S3 exporter configuration
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Snapshotter provides a point-in-time copy of the context
type Snapshotter interface {
	Snapshot() map[string]interface{}
}

// objectClient is the subset of *minio.Client the exporter uses
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Snapshot is the exported document
type Snapshot struct {
	TakenAt time.Time              `json:"taken_at"`
	Entries map[string]interface{} `json:"entries"`
}

// SnapshotExporter writes context snapshots as JSON objects
type SnapshotExporter struct {
	client objectClient
	source Snapshotter
	bucket string
	region string
	prefix string
	logger *zap.Logger

	mu          sync.Mutex
	bucketReady bool
}

// NewSnapshotExporter creates an exporter backed by an S3-compatible endpoint
func NewSnapshotExporter(cfg Config, source Snapshotter, logger *zap.Logger) (*SnapshotExporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	cfg.Region = region
	return newSnapshotExporter(client, cfg, source, logger)
}

func newSnapshotExporter(client objectClient, cfg Config, source Snapshotter, logger *zap.Logger) (*SnapshotExporter, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotExporter{
		client: client,
		source: source,
		bucket: bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// ensureBucket creates the bucket on first use. Failures are not cached, the
// next export retries.
func (e *SnapshotExporter) ensureBucket(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bucketReady {
		return nil
	}

	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{Region: e.region}); err != nil {
			return err
		}
	}
	e.bucketReady = true
	return nil
}

// Export writes the current snapshot and returns its object key
func (e *SnapshotExporter) Export(ctx context.Context) (string, error) {
	if err := e.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	snap := Snapshot{
		TakenAt: time.Now().UTC(),
		Entries: e.source.Snapshot(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := objectKey(e.prefix, snap.TakenAt)
	_, err = e.client.PutObject(ctx, e.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to put snapshot: %w", err)
	}

	e.logger.Info("context snapshot exported",
		zap.String("bucket", e.bucket),
		zap.String("key", key),
		zap.Int("entries", len(snap.Entries)),
		zap.Int("bytes", len(data)))

	return key, nil
}

// Run exports a snapshot every interval until ctx is done, then a final one
func (e *SnapshotExporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			if _, err := e.Export(final); err != nil {
				e.logger.Error("final snapshot export failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if _, err := e.Export(ctx); err != nil {
				e.logger.Error("snapshot export failed", zap.Error(err))
			}
		}
	}
}

func objectKey(prefix string, takenAt time.Time) string {
	name := "snapshot-" + takenAt.Format("20060102T150405.000000000Z") + ".json"
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
