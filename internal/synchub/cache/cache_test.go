package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[string]*model.PersistedRecord
	saves   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]*model.PersistedRecord{}}
}

func (r *fakeRepo) Save(_ context.Context, rec *model.PersistedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.DeviceID] = rec
	r.saves++
	return nil
}

func (r *fakeRepo) Load(_ context.Context, deviceID string) (*model.PersistedRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[deviceID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return rec, nil
}

func (r *fakeRepo) ListDeviceIDs(context.Context) ([]string, error) { return nil, nil }

func (r *fakeRepo) Register(context.Context, string, string) error { return nil }

func (r *fakeRepo) Unregister(context.Context, string) error { return nil }

func (r *fakeRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func annotated(level int, observedAt time.Time) *model.AnnotatedStatus {
	return core.Annotate(&model.DeviceStatus{LevelPercent: level}, observedAt, observedAt)
}

func TestGetServesCachedUntilExpiry(t *testing.T) {
	var fetches atomic.Int32
	now := time.Unix(1700000000, 0)

	c := New(func(context.Context, string) (*model.AnnotatedStatus, error) {
		fetches.Add(1)
		return annotated(60, now), nil
	}, newFakeRepo(), 10*time.Second, 60*time.Second, log.NewNopLogger())
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "dev-1"); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("fetches = %d, want 1 within TTL", got)
	}

	// a healthy mid-range reading carries the long TTL
	now = now.Add(61 * time.Second)
	if _, err := c.Get(context.Background(), "dev-1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("fetches = %d after expiry, want 2", got)
	}
}

func TestTTLSelection(t *testing.T) {
	c := New(nil, newFakeRepo(), 10*time.Second, 60*time.Second, log.NewNopLogger())
	base := time.Unix(1700000000, 0)

	tests := []struct {
		name   string
		status *model.AnnotatedStatus
		want   time.Duration
	}{
		{"healthy mid-range", annotated(60, base), 60 * time.Second},
		{"empty tank", annotated(0, base), 10 * time.Second},
		{"low level", annotated(25, base), 10 * time.Second},
		{"nearly full", annotated(98, base), 10 * time.Second},
		{"full", annotated(100, base), 10 * time.Second},
		{
			"pump running",
			core.Annotate(&model.DeviceStatus{LevelPercent: 60, PumpOn: true}, base, base),
			10 * time.Second,
		},
		{
			"no device data",
			&model.AnnotatedStatus{Category: model.CategoryOffline},
			10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ttlFor(tt.status); got != tt.want {
				t.Errorf("ttlFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	var fetches atomic.Int32

	c := New(func(context.Context, string) (*model.AnnotatedStatus, error) {
		fetches.Add(1)
		time.Sleep(50 * time.Millisecond)
		return annotated(60, time.Now()), nil
	}, newFakeRepo(), 10*time.Second, 60*time.Second, log.NewNopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "dev-1"); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d for 8 concurrent readers, want 1", got)
	}
}

func TestFallbackServedButNotCached(t *testing.T) {
	var fetches atomic.Int32
	now := time.Unix(1700000000, 0)

	repo := newFakeRepo()
	raw, _ := json.Marshal(&model.DeviceStatus{LevelPercent: 42})
	repo.records["dev-1"] = &model.PersistedRecord{
		DeviceID:     "dev-1",
		LevelPercent: 42,
		RawStatus:    raw,
		LastSync:     now.Add(-5 * time.Minute),
	}

	c := New(func(context.Context, string) (*model.AnnotatedStatus, error) {
		fetches.Add(1)
		return nil, core.ErrTransport
	}, repo, 10*time.Second, 60*time.Second, log.NewNopLogger())
	c.now = func() time.Time { return now }

	st, err := c.Get(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Get() error = %v, want fallback success", err)
	}
	if st.Device == nil || st.Device.LevelPercent != 42 {
		t.Fatalf("fallback status = %+v, want level 42", st)
	}
	if st.Category != model.CategoryNormal {
		t.Errorf("Category = %q, want NORMAL for a recent record", st.Category)
	}

	// fallback results are not cached; the vendor is retried next time
	if _, err := c.Get(context.Background(), "dev-1"); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2 (fallback not cached)", got)
	}
}

func TestFallbackStaleRecordIsOffline(t *testing.T) {
	now := time.Unix(1700000000, 0)

	repo := newFakeRepo()
	raw, _ := json.Marshal(&model.DeviceStatus{LevelPercent: 60})
	repo.records["dev-1"] = &model.PersistedRecord{
		DeviceID:  "dev-1",
		RawStatus: raw,
		LastSync:  now.Add(-31 * time.Minute),
	}

	c := New(func(context.Context, string) (*model.AnnotatedStatus, error) {
		return nil, core.ErrTransport
	}, repo, 10*time.Second, 60*time.Second, log.NewNopLogger())
	c.now = func() time.Time { return now }

	st, err := c.Get(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.Category != model.CategoryOffline {
		t.Errorf("Category = %q, want OFFLINE for a 31-minute-old record", st.Category)
	}
}

func TestNoDataAnywhere(t *testing.T) {
	c := New(func(context.Context, string) (*model.AnnotatedStatus, error) {
		return nil, core.ErrTransport
	}, newFakeRepo(), 10*time.Second, 60*time.Second, log.NewNopLogger())

	_, err := c.Get(context.Background(), "dev-x")
	if !errors.Is(err, core.ErrNoData) {
		t.Fatalf("Get() error = %v, want ErrNoData", err)
	}
	if !errors.Is(err, core.ErrTransport) {
		t.Errorf("Get() error = %v, want the fetch cause preserved", err)
	}
}

func TestSuccessfulFetchIsPersisted(t *testing.T) {
	repo := newFakeRepo()
	observed := time.Unix(1700000000, 0)

	c := New(func(context.Context, string) (*model.AnnotatedStatus, error) {
		return annotated(60, observed), nil
	}, repo, 10*time.Second, 60*time.Second, log.NewNopLogger())

	if _, err := c.Get(context.Background(), "dev-1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for repo.saveCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("status was never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec, err := repo.Load(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.LevelPercent != 60 || !rec.LastSync.Equal(observed) {
		t.Errorf("persisted record = %+v, want level 60 at %v", rec, observed)
	}
}
