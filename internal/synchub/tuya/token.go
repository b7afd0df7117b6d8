package tuya

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aquahub-io/aquahub/internal/synchub/core"
)

const (
	tokenPath = "/v1.0/token?grant_type=1"

	// tokenExpiryMargin is subtracted from the vendor-reported lifetime so a
	// token is never used right at its expiry edge.
	tokenExpiryMargin = 60 * time.Second

	tokenRetryInitial = 200 * time.Millisecond
	tokenRetryMax     = 3
)

type tokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpireTime   int64  `json:"expire_time"`
	UID          string `json:"uid"`
}

// ensureToken returns a valid cached access token, acquiring a new one when
// missing or expired. Concurrent callers share a single acquisition.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		tok := c.accessToken
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	v, err, _ := c.tokenGroup.Do("token", func() (any, error) {
		// another caller may have refreshed while we waited for the group
		c.mu.Lock()
		if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
			tok := c.accessToken
			c.mu.Unlock()
			return tok, nil
		}
		c.mu.Unlock()

		return c.acquireToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// acquireToken performs the unauthenticated token call, retrying transport
// failures with exponential backoff. A well-formed rejection is ErrAuthFailed
// and is not retried.
func (c *Client) acquireToken(ctx context.Context) (string, error) {
	var env *envelope

	op := func() error {
		e, err := c.do(ctx, "token", http.MethodGet, tokenPath, nil, "")
		if err != nil {
			return err
		}
		env = e
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = tokenRetryInitial
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, tokenRetryMax), ctx)); err != nil {
		return "", err
	}

	if !env.Success {
		return "", fmt.Errorf("%w: vendor code %d: %s", core.ErrAuthFailed, env.Code, env.Msg)
	}

	var res tokenResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return "", fmt.Errorf("decode token result: %w", err)
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", core.ErrAuthFailed)
	}

	ttl := time.Duration(res.ExpireTime)*time.Second - tokenExpiryMargin
	c.mu.Lock()
	c.accessToken = res.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	c.mu.Unlock()

	c.logger.Debug("access token refreshed", "expiresIn", res.ExpireTime)
	return res.AccessToken, nil
}

// invalidateToken drops the cached token so the next call refreshes it.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}
