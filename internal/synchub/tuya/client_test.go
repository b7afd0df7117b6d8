package tuya

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/options"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts := options.NewTuyaOptions()
	opts.BaseURL = srv.URL
	opts.ClientID = "test-client"
	opts.ClientSecret = "test-secret"

	return NewClient(opts, log.NewNopLogger())
}

func respondOK(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"t":       time.Now().UnixMilli(),
		"result":  json.RawMessage(raw),
	})
}

func respondFail(w http.ResponseWriter, code int, msg string) {
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"code":    code,
		"msg":     msg,
		"t":       time.Now().UnixMilli(),
	})
}

func tokenResultBody(token string, expireSeconds int64) map[string]any {
	return map[string]any{
		"access_token": token,
		"expire_time":  expireSeconds,
		"uid":          "u1",
	}
}

func detailResult(id string, level int) map[string]any {
	return map[string]any{
		"id":     id,
		"name":   "tank",
		"online": true,
		"status": []map[string]any{{"code": "101", "value": level}},
	}
}

func TestTokenReusedAcrossCalls(t *testing.T) {
	var mu sync.Mutex
	tokenHits := 0

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1.0/token":
			mu.Lock()
			tokenHits++
			mu.Unlock()
			respondOK(w, tokenResultBody("tok-1", 7200))
		default:
			respondOK(w, detailResult("dev-1", 50))
		}
	})

	for i := 0; i < 3; i++ {
		if _, err := c.DeviceStatus(context.Background(), "dev-1"); err != nil {
			t.Fatalf("DeviceStatus() error = %v", err)
		}
	}

	if tokenHits != 1 {
		t.Errorf("token endpoint hit %d times, want 1", tokenHits)
	}
}

func TestTokenRefreshedNearExpiry(t *testing.T) {
	var mu sync.Mutex
	tokenHits := 0

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1.0/token":
			mu.Lock()
			tokenHits++
			mu.Unlock()
			// 120s lifetime minus the 60s margin leaves 60s of use
			respondOK(w, tokenResultBody("tok", 120))
		default:
			respondOK(w, detailResult("dev-1", 50))
		}
	})

	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	if _, err := c.DeviceStatus(context.Background(), "dev-1"); err != nil {
		t.Fatalf("DeviceStatus() error = %v", err)
	}

	now = now.Add(59 * time.Second)
	if _, err := c.DeviceStatus(context.Background(), "dev-1"); err != nil {
		t.Fatalf("DeviceStatus() error = %v", err)
	}
	if tokenHits != 1 {
		t.Fatalf("token refreshed before the margin: %d hits", tokenHits)
	}

	now = now.Add(2 * time.Second)
	if _, err := c.DeviceStatus(context.Background(), "dev-1"); err != nil {
		t.Fatalf("DeviceStatus() error = %v", err)
	}
	if tokenHits != 2 {
		t.Errorf("token endpoint hit %d times after expiry, want 2", tokenHits)
	}
}

func TestTokenRejectionIsAuthFailure(t *testing.T) {
	var mu sync.Mutex
	tokenHits := 0

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokenHits++
		mu.Unlock()
		respondFail(w, 1010, "token invalid")
	})

	_, err := c.DeviceStatus(context.Background(), "dev-1")
	if !errors.Is(err, core.ErrAuthFailed) {
		t.Fatalf("DeviceStatus() error = %v, want ErrAuthFailed", err)
	}

	// a well-formed rejection must not be retried
	if tokenHits != 1 {
		t.Errorf("token endpoint hit %d times, want 1", tokenHits)
	}
}

func TestBatchStatusChunks(t *testing.T) {
	var mu sync.Mutex
	batchHits := 0
	var chunkSizes []int

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1.0/token":
			respondOK(w, tokenResultBody("tok", 7200))
		case r.URL.Path == "/v1.0/devices/status":
			ids := strings.Split(r.URL.Query().Get("device_ids"), ",")
			mu.Lock()
			batchHits++
			chunkSizes = append(chunkSizes, len(ids))
			mu.Unlock()

			items := make([]map[string]any, 0, len(ids))
			for _, id := range ids {
				items = append(items, map[string]any{
					"id":     id,
					"online": true,
					"status": []map[string]any{{"code": "101", "value": 40}},
				})
			}
			respondOK(w, items)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = "dev-" + string(rune('a'+i))
	}

	got, err := c.BatchDeviceStatus(context.Background(), ids)
	if err != nil {
		t.Fatalf("BatchDeviceStatus() error = %v", err)
	}

	if batchHits != 2 {
		t.Errorf("batch endpoint hit %d times for 25 ids, want 2", batchHits)
	}
	if chunkSizes[0] != 20 || chunkSizes[1] != 5 {
		t.Errorf("chunk sizes = %v, want [20 5]", chunkSizes)
	}
	if len(got) != 25 {
		t.Errorf("got %d statuses, want 25", len(got))
	}
	for id, st := range got {
		if st.LevelPercent != 40 {
			t.Errorf("device %s LevelPercent = %d, want 40", id, st.LevelPercent)
		}
	}
}

func TestVendorErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1.0/token" {
			respondOK(w, tokenResultBody("tok", 7200))
			return
		}
		respondFail(w, 1106, "permission deny")
	})

	_, err := c.Device(context.Background(), "dev-x")

	var verr *core.VendorError
	if !errors.As(err, &verr) {
		t.Fatalf("Device() error = %v, want *core.VendorError", err)
	}
	if verr.Code != 1106 {
		t.Errorf("VendorError.Code = %d, want 1106", verr.Code)
	}
}

func TestAuthCodeInvalidatesCachedToken(t *testing.T) {
	var mu sync.Mutex
	tokenHits, deviceHits := 0, 0

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1.0/token":
			mu.Lock()
			tokenHits++
			mu.Unlock()
			respondOK(w, tokenResultBody("tok", 7200))
		default:
			mu.Lock()
			deviceHits++
			n := deviceHits
			mu.Unlock()
			if n == 1 {
				respondFail(w, 1010, "token invalid")
				return
			}
			respondOK(w, detailResult("dev-1", 50))
		}
	})

	if _, err := c.DeviceStatus(context.Background(), "dev-1"); !errors.Is(err, core.ErrAuthFailed) {
		t.Fatalf("first call error = %v, want ErrAuthFailed", err)
	}
	if _, err := c.DeviceStatus(context.Background(), "dev-1"); err != nil {
		t.Fatalf("second call error = %v, want success after token refresh", err)
	}

	if tokenHits != 2 {
		t.Errorf("token endpoint hit %d times, want 2 (cache invalidated)", tokenHits)
	}
}

func TestRequestSigning(t *testing.T) {
	const secret = "test-secret"

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}

		clientID := r.Header.Get("client_id")
		ts := r.Header.Get("t")
		token := r.Header.Get("access_token")

		if clientID == "" || ts == "" {
			t.Errorf("missing identity headers on %s", path)
		}
		if got := r.Header.Get("sign_method"); got != "HMAC-SHA256" {
			t.Errorf("sign_method = %q", got)
		}

		want := sign(clientID, secret, token, ts, "", r.Method, path, nil)
		if got := r.Header.Get("sign"); got != want {
			t.Errorf("sign header = %q, want %q on %s", got, want, path)
		}

		if r.URL.Path == "/v1.0/token" {
			if _, ok := r.Header[http.CanonicalHeaderKey("nonce")]; !ok {
				t.Error("token request missing nonce header")
			}
			if token != "" {
				t.Errorf("token request carried access_token %q", token)
			}
			respondOK(w, tokenResultBody("tok", 7200))
			return
		}
		if token == "" {
			t.Errorf("authenticated request to %s missing access_token", path)
		}
		respondOK(w, detailResult("dev-1", 50))
	})

	if _, err := c.DeviceStatus(context.Background(), "dev-1"); err != nil {
		t.Fatalf("DeviceStatus() error = %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var mu sync.Mutex
	deviceHits := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1.0/token" {
			respondOK(w, tokenResultBody("tok", 7200))
			return
		}
		mu.Lock()
		deviceHits++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	opts := options.NewTuyaOptions()
	opts.BaseURL = srv.URL
	opts.ClientID = "test-client"
	opts.ClientSecret = "test-secret"
	opts.BreakerFailures = 2
	c := NewClient(opts, log.NewNopLogger())

	for i := 0; i < 2; i++ {
		if _, err := c.DeviceStatus(context.Background(), "dev-1"); !errors.Is(err, core.ErrTransport) {
			t.Fatalf("call %d error = %v, want ErrTransport", i, err)
		}
	}

	// breaker is open now; the upstream must not be touched again
	if _, err := c.DeviceStatus(context.Background(), "dev-1"); !errors.Is(err, core.ErrTransport) {
		t.Fatalf("call with open breaker error = %v, want ErrTransport", err)
	}

	if deviceHits != 2 {
		t.Errorf("device endpoint hit %d times, want 2", deviceHits)
	}
}
