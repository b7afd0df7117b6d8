package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/options"
)

type fakeEngine struct {
	mu        sync.Mutex
	ids       []string
	refreshed []string
	failIDs   map[string]bool
	sweeps    int
	inFlight  int
	maxSeen   int
}

func (e *fakeEngine) KnownDeviceIDs(context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ids...), nil
}

func (e *fakeEngine) RefreshDevice(_ context.Context, id string) (*model.AnnotatedStatus, error) {
	e.mu.Lock()
	e.inFlight++
	if e.inFlight > e.maxSeen {
		e.maxSeen = e.inFlight
	}
	e.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	e.mu.Lock()
	e.inFlight--
	e.refreshed = append(e.refreshed, id)
	fail := e.failIDs[id]
	e.mu.Unlock()

	if fail {
		return nil, errors.New("vendor unreachable")
	}
	return &model.AnnotatedStatus{Category: model.CategoryNormal}, nil
}

func (e *fakeEngine) SyncSweep(context.Context) (int, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sweeps++
	return len(e.ids), 0, nil
}

func newScheduler(e *fakeEngine, interval time.Duration, parallel int, warm bool) *Scheduler {
	opts := options.NewSyncOptions()
	opts.Interval = interval
	opts.Parallel = parallel
	opts.WarmCache = warm
	return New(e, opts, log.NewNopLogger())
}

func TestFirstCycleRunsImmediately(t *testing.T) {
	e := &fakeEngine{ids: []string{"dev-1", "dev-2"}}
	s := newScheduler(e, time.Hour, 1, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		e.mu.Lock()
		n := len(e.refreshed)
		e.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first cycle did not run immediately")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start() error = %v", err)
	}
}

func TestFailuresAreIsolatedPerDevice(t *testing.T) {
	e := &fakeEngine{
		ids:     []string{"dev-1", "dev-2", "dev-3"},
		failIDs: map[string]bool{"dev-2": true},
	}
	s := newScheduler(e, time.Hour, 1, true)

	s.runCycle(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.refreshed) != 3 {
		t.Errorf("refreshed %d devices, want all 3 despite one failure", len(e.refreshed))
	}
}

func TestParallelismIsBounded(t *testing.T) {
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	e := &fakeEngine{ids: ids}
	s := newScheduler(e, time.Hour, 2, true)

	s.runCycle(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.maxSeen > 2 {
		t.Errorf("max concurrent refreshes = %d, want at most 2", e.maxSeen)
	}
	if len(e.refreshed) != 10 {
		t.Errorf("refreshed %d devices, want 10", len(e.refreshed))
	}
}

func TestSweepModeSkipsCacheFillPath(t *testing.T) {
	e := &fakeEngine{ids: []string{"dev-1"}}
	s := newScheduler(e, time.Hour, 1, false)

	s.runCycle(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sweeps != 1 {
		t.Errorf("sweeps = %d, want 1", e.sweeps)
	}
	if len(e.refreshed) != 0 {
		t.Errorf("refreshed = %v, want none in sweep mode", e.refreshed)
	}
}
