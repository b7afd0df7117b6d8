package tuya

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/aquahub-io/aquahub/internal/pkg/metrics"
	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/options"
)

// batchLimit is the vendor's maximum number of device ids per batch call.
const batchLimit = 20

var _ core.VendorClient = (*Client)(nil)

// Client talks to the Tuya OpenAPI. It signs every request, caches the
// access token, and routes all traffic through a circuit breaker so a dead
// upstream fails fast instead of piling up timeouts.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string

	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  log.Logger
	now     func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	tokenGroup  singleflight.Group
}

// NewClient creates a vendor client from the given options.
func NewClient(opts *options.TuyaOptions, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.WithName("tuya")

	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		httpc:        &http.Client{Timeout: opts.RequestTimeout},
		logger:       logger,
		now:          time.Now,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "tuya",
		Timeout: opts.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(opts.BreakerFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return c
}

// envelope is the vendor's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	T       int64           `json:"t"`
	Result  json.RawMessage `json:"result"`
}

// deviceDetail is the vendor's device record. It carries the connectivity
// flag alongside the full datapoint list, so one call serves both the status
// and the discovery paths.
type deviceDetail struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ProductName string      `json:"product_name"`
	Category    string      `json:"category"`
	Online      bool        `json:"online"`
	Status      []DataPoint `json:"status"`
}

// DeviceStatus fetches one device and normalizes its datapoint report.
func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (*model.DeviceStatus, error) {
	d, err := c.deviceDetail(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	st := Normalize(d.Status)
	st.Online = d.Online
	return st, nil
}

// BatchDeviceStatus fetches many devices, chunking the id list to the
// vendor's batch limit. Ids the vendor does not report are absent from the
// result map.
func (c *Client) BatchDeviceStatus(ctx context.Context, deviceIDs []string) (map[string]*model.DeviceStatus, error) {
	out := make(map[string]*model.DeviceStatus, len(deviceIDs))

	for start := 0; start < len(deviceIDs); start += batchLimit {
		end := start + batchLimit
		if end > len(deviceIDs) {
			end = len(deviceIDs)
		}
		chunk := deviceIDs[start:end]

		path := "/v1.0/devices/status?device_ids=" + url.QueryEscape(strings.Join(chunk, ","))

		var items []struct {
			ID     string      `json:"id"`
			Online bool        `json:"online"`
			Status []DataPoint `json:"status"`
		}
		if err := c.request(ctx, "batch_status", http.MethodGet, path, nil, &items); err != nil {
			return nil, err
		}

		for _, it := range items {
			st := Normalize(it.Status)
			st.Online = it.Online
			out[it.ID] = st
		}
	}

	return out, nil
}

// Device fetches the vendor's device record as a summary.
func (c *Client) Device(ctx context.Context, deviceID string) (*model.DeviceSummary, error) {
	d, err := c.deviceDetail(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return summarize(d), nil
}

// UserDevices lists the devices registered under a vendor user account.
func (c *Client) UserDevices(ctx context.Context, uid string) ([]model.DeviceSummary, error) {
	var details []deviceDetail
	path := "/v1.0/users/" + url.PathEscape(uid) + "/devices"
	if err := c.request(ctx, "user_devices", http.MethodGet, path, nil, &details); err != nil {
		return nil, err
	}

	out := make([]model.DeviceSummary, 0, len(details))
	for i := range details {
		out = append(out, *summarize(&details[i]))
	}
	return out, nil
}

func (c *Client) deviceDetail(ctx context.Context, deviceID string) (*deviceDetail, error) {
	d := &deviceDetail{}
	path := "/v1.0/devices/" + url.PathEscape(deviceID)
	if err := c.request(ctx, "device_detail", http.MethodGet, path, nil, d); err != nil {
		return nil, err
	}
	return d, nil
}

func summarize(d *deviceDetail) *model.DeviceSummary {
	return &model.DeviceSummary{
		ID:          d.ID,
		Name:        d.Name,
		ProductName: d.ProductName,
		Category:    d.Category,
		Online:      d.Online,
	}
}

// request performs an authenticated call and unmarshals the result payload.
func (c *Client) request(ctx context.Context, endpoint, method, path string, body []byte, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	env, err := c.do(ctx, endpoint, method, path, body, token)
	if err != nil {
		return err
	}

	if !env.Success {
		if isAuthCode(env.Code) {
			// force a fresh token on the next call
			c.invalidateToken()
			return fmt.Errorf("%w: vendor code %d: %s", core.ErrAuthFailed, env.Code, env.Msg)
		}
		return &core.VendorError{Code: env.Code, Message: env.Msg}
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", endpoint, err)
		}
	}
	return nil
}

// do routes one call through the circuit breaker and records metrics.
// A returned error always wraps ErrTransport; business failures come back
// as a non-success envelope with a nil error.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body []byte, token string) (*envelope, error) {
	start := time.Now()
	res, err := c.breaker.Execute(func() (any, error) {
		return c.execute(ctx, method, path, body, token)
	})
	metrics.VendorRequestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	var env *envelope
	if res != nil {
		env = res.(*envelope)
	}

	outcome := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "breaker_open"
		err = fmt.Errorf("%w: circuit open", core.ErrTransport)
	case err != nil:
		outcome = "transport_error"
		err = fmt.Errorf("%w: %w", core.ErrTransport, err)
	case !env.Success && isAuthCode(env.Code):
		outcome = "auth_error"
	case !env.Success:
		outcome = "vendor_error"
	}
	metrics.VendorRequestTotal.WithLabelValues(endpoint, outcome).Inc()

	if err != nil {
		c.logger.Warn("vendor call failed", "endpoint", endpoint, "err", err)
		return nil, err
	}
	return env, nil
}

// execute signs and performs one HTTP exchange. It is the unit of work the
// circuit breaker counts: any error here is a transport-level failure.
func (c *Client) execute(ctx context.Context, method, path string, body []byte, token string) (*envelope, error) {
	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	req.Header.Set("client_id", c.clientID)
	req.Header.Set("t", ts)
	req.Header.Set("sign_method", signMethod)
	req.Header.Set("sign", sign(c.clientID, c.clientSecret, token, ts, "", method, path, body))
	if token != "" {
		req.Header.Set("access_token", token)
	} else {
		// The token call carries a nonce header instead of access_token.
		// The signature input uses the same empty nonce.
		req.Header.Set("nonce", "")
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	env := &envelope{}
	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return env, nil
}

// Vendor business codes that mean our credential or signature was rejected.
func isAuthCode(code int) bool {
	switch code {
	case 1001, 1004, 1010, 1011, 1012, 1013:
		return true
	}
	return false
}
