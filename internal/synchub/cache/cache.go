// Package cache holds the freshness-aware device status cache. It is the
// single chokepoint between readers and the vendor cloud: concurrent lookups
// of one device collapse into a single upstream fetch, and a failed fetch is
// answered from the persistent fallback store instead of an error whenever a
// last-known status exists.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aquahub-io/aquahub/internal/pkg/metrics"
	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
)

// persistTimeout bounds the background write of a fresh status to the
// fallback store.
const persistTimeout = 5 * time.Second

// FetchFunc retrieves and annotates a live status for one device.
type FetchFunc func(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error)

type entry struct {
	status    *model.AnnotatedStatus
	expiresAt time.Time
}

// Cache caches annotated statuses per device with a freshness-dependent TTL:
// readings near an actionable boundary expire quickly so user-facing data
// stays current exactly when it matters, quiet readings are served longer.
type Cache struct {
	fetch  FetchFunc
	repo   core.StatusRepository
	logger log.Logger

	shortTTL time.Duration
	longTTL  time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// New creates a Cache over the given live fetcher and fallback store.
func New(fetch FetchFunc, repo core.StatusRepository, shortTTL, longTTL time.Duration, logger log.Logger) *Cache {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Cache{
		fetch:    fetch,
		repo:     repo,
		logger:   logger.WithName("cache"),
		shortTTL: shortTTL,
		longTTL:  longTTL,
		now:      time.Now,
		entries:  make(map[string]entry),
	}
}

// Get returns the cached status for the device, fetching a fresh one when the
// entry is missing or expired. Concurrent callers for the same device share
// one fetch. When the fetch fails and the fallback store has a record, the
// recovered status is returned without being cached, so the next call retries
// the vendor. With no data anywhere the error wraps ErrNoData.
func (c *Cache) Get(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error) {
	c.mu.RLock()
	e, ok := c.entries[deviceID]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expiresAt) {
		metrics.CacheLookupTotal.WithLabelValues("hit").Inc()
		return e.status, nil
	}

	v, err, shared := c.group.Do(deviceID, func() (any, error) {
		metrics.CacheLookupTotal.WithLabelValues("miss").Inc()
		return c.refresh(ctx, deviceID)
	})
	if shared {
		metrics.CacheLookupTotal.WithLabelValues("join").Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.AnnotatedStatus), nil
}

// Refresh forces a live fetch for the device, bypassing any cached entry.
// The scheduler uses it to warm the cache.
func (c *Cache) Refresh(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error) {
	v, err, _ := c.group.Do(deviceID, func() (any, error) {
		return c.refresh(ctx, deviceID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.AnnotatedStatus), nil
}

// Invalidate drops the cached entry for a device.
func (c *Cache) Invalidate(deviceID string) {
	c.mu.Lock()
	delete(c.entries, deviceID)
	c.mu.Unlock()
}

func (c *Cache) refresh(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error) {
	st, err := c.fetch(ctx, deviceID)
	if err != nil {
		return c.fallback(ctx, deviceID, err)
	}

	c.mu.Lock()
	c.entries[deviceID] = entry{status: st, expiresAt: c.now().Add(c.ttlFor(st))}
	c.mu.Unlock()

	// fire and forget; a lost write only widens the fallback gap
	go c.persist(deviceID, st)

	return st, nil
}

// ttlFor picks the entry lifetime. Anything actionable (empty, low, nearly
// full, pump running, or a non-normal category) gets the short TTL.
func (c *Cache) ttlFor(st *model.AnnotatedStatus) time.Duration {
	d := st.Device
	if d == nil {
		return c.shortTTL
	}
	if d.LevelPercent <= 25 || d.LevelPercent >= 98 || d.PumpOn || st.Category != model.CategoryNormal {
		return c.shortTTL
	}
	return c.longTTL
}

func (c *Cache) persist(deviceID string, st *model.AnnotatedStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	raw, err := json.Marshal(st.Device)
	if err != nil {
		c.logger.Error(err, "encode status for persistence", "device", deviceID)
		return
	}

	rec := &model.PersistedRecord{
		DeviceID:     deviceID,
		LevelPercent: st.Device.LevelPercent,
		RawStatus:    raw,
		LastSync:     st.ObservedAt,
	}
	if err := c.repo.Save(ctx, rec); err != nil {
		c.logger.Error(err, "persist status", "device", deviceID)
	}
}

// fallback recovers the last persisted status after a failed live fetch. The
// result is re-annotated against the record's sync time, so a long outage
// naturally degrades to OFFLINE.
func (c *Cache) fallback(ctx context.Context, deviceID string, fetchErr error) (*model.AnnotatedStatus, error) {
	rec, err := c.repo.Load(ctx, deviceID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", core.ErrNoData, fetchErr)
		}
		return nil, fmt.Errorf("%w: fallback store: %w", core.ErrNoData, err)
	}

	var st model.DeviceStatus
	if err := json.Unmarshal(rec.RawStatus, &st); err != nil {
		return nil, fmt.Errorf("%w: decode persisted status: %w", core.ErrNoData, err)
	}

	metrics.CacheLookupTotal.WithLabelValues("fallback").Inc()
	c.logger.Warn("serving last known status", "device", deviceID, "lastSync", rec.LastSync, "err", fetchErr)

	return core.Annotate(&st, rec.LastSync, c.now()), nil
}
