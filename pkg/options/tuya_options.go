package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*TuyaOptions)(nil)

// TuyaOptions contains credentials and tuning for the Tuya OpenAPI client.
// ClientID and ClientSecret are opaque strings supplied by the hosting
// environment; they are never logged in full.
type TuyaOptions struct {
	BaseURL      string `json:"base-url" mapstructure:"base-url"`
	ClientID     string `json:"client-id" mapstructure:"client-id"`
	ClientSecret string `json:"client-secret" mapstructure:"client-secret"`

	// RequestTimeout bounds every outbound vendor call.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`

	// BreakerFailures is the consecutive-failure count that opens the
	// circuit breaker; BreakerOpenFor is how long it stays open.
	BreakerFailures int           `json:"breaker-failures" mapstructure:"breaker-failures"`
	BreakerOpenFor  time.Duration `json:"breaker-open-for" mapstructure:"breaker-open-for"`
}

// NewTuyaOptions creates a TuyaOptions object with default parameters.
// The default base URL is the Western America data center.
func NewTuyaOptions() *TuyaOptions {
	return &TuyaOptions{
		BaseURL:         "https://openapi.tuyaus.com",
		RequestTimeout:  5 * time.Second,
		BreakerFailures: 5,
		BreakerOpenFor:  30 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *TuyaOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.ClientID == "" {
		errs = append(errs, errors.New("tuya client id is required"))
	}
	if o.ClientSecret == "" {
		errs = append(errs, errors.New("tuya client secret is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, errors.New("tuya base url is required"))
	}

	return errs
}

// AddFlags adds flags related to the Tuya client to the specified FlagSet.
func (o *TuyaOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BaseURL, "tuya.base-url", o.BaseURL, "Regional base URL of the Tuya OpenAPI.")
	fs.StringVar(&o.ClientID, "tuya.client-id", o.ClientID, "Tuya cloud project client id.")
	fs.StringVar(&o.ClientSecret, "tuya.client-secret", o.ClientSecret, "Tuya cloud project client secret.")
	fs.DurationVar(&o.RequestTimeout, "tuya.request-timeout", o.RequestTimeout, "Timeout for each vendor API call.")
	fs.IntVar(&o.BreakerFailures, "tuya.breaker-failures", o.BreakerFailures, "Consecutive failures before the circuit breaker opens.")
	fs.DurationVar(&o.BreakerOpenFor, "tuya.breaker-open-for", o.BreakerOpenFor, "How long the circuit breaker stays open.")
}
