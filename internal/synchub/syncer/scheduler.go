// Package syncer runs the background polling loop that keeps the cache and
// the fallback store fresh without inbound traffic.
package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aquahub-io/aquahub/internal/pkg/metrics"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/options"
)

// Engine is the slice of the core service the scheduler drives.
type Engine interface {
	KnownDeviceIDs(ctx context.Context) ([]string, error)
	RefreshDevice(ctx context.Context, deviceID string) (*model.AnnotatedStatus, error)
	SyncSweep(ctx context.Context) (synced, failed int, err error)
}

// Scheduler polls every linked device on a fixed interval. With cache
// warming enabled (the default) each device goes through the regular cache
// fill path; otherwise one batched sweep refreshes only the fallback store.
type Scheduler struct {
	engine    Engine
	interval  time.Duration
	parallel  int
	warmCache bool
	logger    log.Logger
}

// New creates a Scheduler from the sync options.
func New(engine Engine, opts *options.SyncOptions, logger log.Logger) *Scheduler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}
	return &Scheduler{
		engine:    engine,
		interval:  opts.Interval,
		parallel:  parallel,
		warmCache: opts.WarmCache,
		logger:    logger.WithName("syncer"),
	}
}

// Start runs the loop until the context is canceled. The first cycle runs
// immediately so a fresh process serves data without waiting a full interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("sync scheduler starting", "interval", s.interval, "parallel", s.parallel, "warmCache", s.warmCache)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopping")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle refreshes every linked device. One bad device never aborts the
// cycle; failures are counted and logged per device.
func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.SyncCycleTotal.WithLabelValues(outcome).Inc()
		metrics.SyncCycleDuration.Observe(time.Since(start).Seconds())
	}()

	if !s.warmCache {
		synced, failed, err := s.engine.SyncSweep(ctx)
		if err != nil {
			outcome = "error"
			s.logger.Error(err, "sync sweep failed")
			return
		}
		if failed > 0 {
			outcome = "partial"
			metrics.SyncDeviceFailureTotal.Add(float64(failed))
		}
		s.logger.Debug("sync sweep complete", "synced", synced, "failed", failed, "took", time.Since(start))
		return
	}

	ids, err := s.engine.KnownDeviceIDs(ctx)
	if err != nil {
		outcome = "error"
		s.logger.Error(err, "enumerate linked devices")
		return
	}
	if len(ids) == 0 {
		s.logger.Debug("no linked devices to sync")
		return
	}

	var failed atomic.Int32
	g := &errgroup.Group{}
	g.SetLimit(s.parallel)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.engine.RefreshDevice(ctx, id); err != nil {
				failed.Add(1)
				metrics.SyncDeviceFailureTotal.Inc()
				s.logger.Warn("device refresh failed", "device", id, "err", err)
			}
			return nil
		})
	}
	g.Wait()

	if n := failed.Load(); n > 0 {
		outcome = "partial"
	}
	s.logger.Info("sync cycle complete", "devices", len(ids), "failed", failed.Load(), "took", time.Since(start))
}
