// Package redis implements the persistent fallback store on Redis: one hash
// per device with the last normalized status, plus a set of linked device ids
// for enumeration.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/options"
)

const (
	fieldLevel    = "level"
	fieldRaw      = "raw"
	fieldLastSync = "last_sync"
	fieldName     = "name"
)

var _ core.StatusRepository = (*Repository)(nil)

// Repository is the go-redis backed StatusRepository.
type Repository struct {
	client *redis.Client
	prefix string
	logger log.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, opts *options.RedisOptions, logger log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return &Repository{
		client: client,
		prefix: opts.KeyPrefix,
		logger: logger.WithName("redis"),
	}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) deviceKey(id string) string {
	return r.prefix + ":device:" + id
}

func (r *Repository) devicesKey() string {
	return r.prefix + ":devices"
}

// recordFields maps a record to its hash fields. The mapping is a pure
// function of the record, so overwriting a hash with the same record is a
// no-op for the stored state.
func recordFields(rec *model.PersistedRecord) map[string]any {
	return map[string]any{
		fieldLevel:    rec.LevelPercent,
		fieldRaw:      string(rec.RawStatus),
		fieldLastSync: rec.LastSync.UTC().Format(time.RFC3339Nano),
	}
}

// parseRecord is the inverse of recordFields. An empty or raw-less hash means
// the device was never saved.
func parseRecord(deviceID string, fields map[string]string) (*model.PersistedRecord, error) {
	if len(fields) == 0 || fields[fieldRaw] == "" {
		return nil, core.ErrNotFound
	}

	rec := &model.PersistedRecord{
		DeviceID:  deviceID,
		RawStatus: []byte(fields[fieldRaw]),
	}
	if v, err := strconv.Atoi(fields[fieldLevel]); err == nil {
		rec.LevelPercent = v
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldLastSync]); err == nil {
		rec.LastSync = ts
	}
	return rec, nil
}

// Save upserts the last-known status record for a device. It deliberately
// does not add the id to the linked set: any id can be read ad hoc without
// becoming a scheduled device.
func (r *Repository) Save(ctx context.Context, rec *model.PersistedRecord) error {
	if err := r.client.HSet(ctx, r.deviceKey(rec.DeviceID), recordFields(rec)).Err(); err != nil {
		return fmt.Errorf("save record for %s: %w", rec.DeviceID, err)
	}
	return nil
}

// Load returns the last record for a device, or ErrNotFound.
func (r *Repository) Load(ctx context.Context, deviceID string) (*model.PersistedRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.deviceKey(deviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load record for %s: %w", deviceID, err)
	}
	return parseRecord(deviceID, fields)
}

// ListDeviceIDs enumerates the linked device ids.
func (r *Repository) ListDeviceIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.devicesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list device ids: %w", err)
	}
	return ids, nil
}

// Register adds a device to the linked set and stores its display name.
// Registering an id twice returns ErrDeviceAlreadyLinked.
func (r *Repository) Register(ctx context.Context, deviceID, name string) error {
	added, err := r.client.SAdd(ctx, r.devicesKey(), deviceID).Result()
	if err != nil {
		return fmt.Errorf("register %s: %w", deviceID, err)
	}
	if added == 0 {
		return core.ErrDeviceAlreadyLinked
	}

	if name != "" {
		if err := r.client.HSet(ctx, r.deviceKey(deviceID), fieldName, name).Err(); err != nil {
			r.logger.Warn("store device name failed", "device", deviceID, "err", err)
		}
	}
	return nil
}

// Unregister removes a device from the linked set. The status record is
// kept; it only stops being scheduled.
func (r *Repository) Unregister(ctx context.Context, deviceID string) error {
	if err := r.client.SRem(ctx, r.devicesKey(), deviceID).Err(); err != nil {
		return fmt.Errorf("unregister %s: %w", deviceID, err)
	}
	return nil
}
