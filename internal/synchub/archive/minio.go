// Package archive stores raw annotated status snapshots in S3-compatible
// object storage for offline inspection. One object per observation, keyed
// by date and device id.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/options"
)

const snapshotPrefix = "snapshots"

var _ core.SnapshotArchiver = (*MinIOArchiver)(nil)

// MinIOArchiver writes snapshots under snapshots/{date}/{deviceID}.json,
// so each day keeps one last-written object per device.
type MinIOArchiver struct {
	client     *minio.Client
	bucketName string
	logger     log.Logger
}

// New creates the archiver and ensures the bucket exists.
func New(ctx context.Context, opts *options.S3Options, logger log.Logger) (*MinIOArchiver, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.WithName("archive")

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	a := &MinIOArchiver{
		client:     client,
		bucketName: opts.BucketName,
		logger:     logger,
	}
	if err := a.checkBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("snapshot archive ready", "endpoint", opts.Endpoint, "bucket", opts.BucketName)
	return a, nil
}

func (a *MinIOArchiver) checkBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucketName, err)
	}
	if !exists {
		a.logger.Info("bucket does not exist, creating", "bucket", a.bucketName)
		if err := a.client.MakeBucket(ctx, a.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucketName, err)
		}
	}
	return nil
}

// StoreSnapshot uploads one JSON payload.
func (a *MinIOArchiver) StoreSnapshot(ctx context.Context, deviceID string, ts time.Time, payload []byte) error {
	key := path.Join(snapshotPrefix, ts.UTC().Format("2006-01-02"), deviceID+".json")

	_, err := a.client.PutObject(ctx, a.bucketName, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("store snapshot %s: %w", key, err)
	}
	return nil
}
