// Package service implements the device-state synchronization core: the
// cache-first status read path, device discovery and linking, and the bulk
// sweep used by the background scheduler.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aquahub-io/aquahub/internal/synchub/cache"
	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
)

// publishTimeout bounds the background MQTT publish and snapshot upload that
// follow a successful fetch.
const publishTimeout = 5 * time.Second

// Config carries the service dependencies. Notifier and Archiver are
// optional; nil disables them.
type Config struct {
	Vendor   core.VendorClient
	Repo     core.StatusRepository
	Notifier core.StatusNotifier
	Archiver core.SnapshotArchiver

	ShortTTL time.Duration
	LongTTL  time.Duration

	Logger log.Logger
}

// Service is the core application service over the vendor client, the cache
// and the fallback store.
type Service struct {
	vendor   core.VendorClient
	repo     core.StatusRepository
	notifier core.StatusNotifier
	archiver core.SnapshotArchiver
	cache    *cache.Cache
	logger   log.Logger
	now      func() time.Time
}

// New wires a Service and its status cache.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Service{
		vendor:   cfg.Vendor,
		repo:     cfg.Repo,
		notifier: cfg.Notifier,
		archiver: cfg.Archiver,
		logger:   logger.WithName("service"),
		now:      time.Now,
	}
	s.cache = cache.New(s.fetchLive, cfg.Repo, cfg.ShortTTL, cfg.LongTTL, logger)
	return s
}

// GetStatus returns the annotated status of one device, served from cache
// when fresh, fetched live otherwise, and recovered from the fallback store
// when the vendor is unreachable.
func (s *Service) GetStatus(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error) {
	return s.cache.Get(ctx, deviceID)
}

// RefreshDevice forces a live fetch through the regular cache fill path.
func (s *Service) RefreshDevice(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error) {
	return s.cache.Refresh(ctx, deviceID)
}

// KnownDeviceIDs enumerates the linked device ids.
func (s *Service) KnownDeviceIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListDeviceIDs(ctx)
}

// ListKnownDevices lists the vendor account's devices with the Linked flag
// set for ids already registered here.
func (s *Service) ListKnownDevices(ctx context.Context, uid string) ([]model.DeviceSummary, error) {
	devs, err := s.vendor.UserDevices(ctx, uid)
	if err != nil {
		return nil, err
	}

	ids, err := s.repo.ListDeviceIDs(ctx)
	if err != nil {
		return nil, err
	}
	linked := make(map[string]bool, len(ids))
	for _, id := range ids {
		linked[id] = true
	}

	for i := range devs {
		devs[i].Linked = linked[devs[i].ID]
	}
	return devs, nil
}

// LinkDevice verifies the device exists at the vendor and registers it. A
// vendor rejection (unknown id) surfaces as *core.VendorError; a duplicate as
// ErrDeviceAlreadyLinked. The cache is primed in the background so the first
// status read after linking is instant.
func (s *Service) LinkDevice(ctx context.Context, deviceID, name string) (*model.DeviceSummary, error) {
	d, err := s.vendor.Device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		d.Name = name
	}

	if err := s.repo.Register(ctx, d.ID, d.Name); err != nil {
		return nil, err
	}
	d.Linked = true

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if _, err := s.cache.Refresh(ctx, d.ID); err != nil {
			s.logger.Warn("prime after link failed", "device", d.ID, "err", err)
		}
	}()

	s.logger.Info("device linked", "device", d.ID, "name", d.Name)
	return d, nil
}

// UnlinkDevice removes a device from the known set and drops its cache
// entry. The persisted status record is kept.
func (s *Service) UnlinkDevice(ctx context.Context, deviceID string) error {
	if err := s.repo.Unregister(ctx, deviceID); err != nil {
		return err
	}
	s.cache.Invalidate(deviceID)
	s.logger.Info("device unlinked", "device", deviceID)
	return nil
}

// SyncSweep refreshes the fallback store for every known device with one
// batched vendor call, without touching the cache. The scheduler uses it when
// cache warming is disabled. Devices absent from the batch result are counted
// as failed; the rest still sync.
func (s *Service) SyncSweep(ctx context.Context) (synced, failed int, err error) {
	ids, err := s.repo.ListDeviceIDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	batch, err := s.vendor.BatchDeviceStatus(ctx, ids)
	if err != nil {
		return 0, len(ids), err
	}

	for _, id := range ids {
		st, ok := batch[id]
		if !ok {
			failed++
			s.logger.Warn("device missing from batch result", "device", id)
			continue
		}

		now := s.now()
		ann := core.Annotate(st, now, now)

		raw, merr := json.Marshal(st)
		if merr != nil {
			failed++
			s.logger.Error(merr, "encode status", "device", id)
			continue
		}
		rec := &model.PersistedRecord{
			DeviceID:     id,
			LevelPercent: st.LevelPercent,
			RawStatus:    raw,
			LastSync:     now,
		}
		if serr := s.repo.Save(ctx, rec); serr != nil {
			failed++
			s.logger.Error(serr, "persist status", "device", id)
			continue
		}

		s.publish(id, ann)
		synced++
	}
	return synced, failed, nil
}

// fetchLive is the cache fill function: fetch, annotate, then publish in the
// background.
func (s *Service) fetchLive(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error) {
	st, err := s.vendor.DeviceStatus(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ann := core.Annotate(st, now, now)
	s.publish(deviceID, ann)
	return ann, nil
}

// publish hands a fresh status to the notifier and the archiver. Both are
// fire and forget; a failed publish never fails the read path.
func (s *Service) publish(deviceID string, ann *model.AnnotatedStatus) {
	if s.notifier == nil && s.archiver == nil {
		return
	}

	payload, err := json.Marshal(ann)
	if err != nil {
		s.logger.Error(err, "encode status for publish", "device", deviceID)
		return
	}

	if s.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := s.notifier.NotifyStatus(ctx, deviceID, ann); err != nil {
				s.logger.Warn("status notify failed", "device", deviceID, "err", err)
			}
		}()
	}

	if s.archiver != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := s.archiver.StoreSnapshot(ctx, deviceID, ann.ObservedAt, payload); err != nil {
				s.logger.Warn("snapshot archive failed", "device", deviceID, "err", err)
			}
		}()
	}
}
