package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SyncOptions)(nil)

// SyncOptions tunes the background synchronization job and the freshness
// cache.
type SyncOptions struct {
	// Interval between sync cycles. The first cycle runs immediately at
	// process start.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// Parallel is the number of devices refreshed concurrently per cycle.
	// 1 means strictly sequential.
	Parallel int `json:"parallel" mapstructure:"parallel"`

	// WarmCache also fills the in-process cache during sync cycles, so
	// devices stay fresh without inbound traffic.
	WarmCache bool `json:"warm-cache" mapstructure:"warm-cache"`

	// ShortTTL / LongTTL are the per-entry cache lifetimes for urgent and
	// steady-state readings respectively.
	ShortTTL time.Duration `json:"short-ttl" mapstructure:"short-ttl"`
	LongTTL  time.Duration `json:"long-ttl" mapstructure:"long-ttl"`
}

// NewSyncOptions creates a SyncOptions object with default parameters.
func NewSyncOptions() *SyncOptions {
	return &SyncOptions{
		Interval:  60 * time.Second,
		Parallel:  1,
		WarmCache: true,
		ShortTTL:  10 * time.Second,
		LongTTL:   60 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *SyncOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.Interval <= 0 {
		errs = append(errs, errors.New("sync interval must be positive"))
	}
	if o.Parallel < 1 {
		errs = append(errs, errors.New("sync parallelism must be at least 1"))
	}
	if o.ShortTTL <= 0 || o.LongTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}

	return errs
}

// AddFlags adds flags related to the sync scheduler to the specified FlagSet.
func (o *SyncOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Interval, "sync.interval", o.Interval, "Interval between background sync cycles.")
	fs.IntVar(&o.Parallel, "sync.parallel", o.Parallel, "Devices refreshed concurrently per cycle (1 = sequential).")
	fs.BoolVar(&o.WarmCache, "sync.warm-cache", o.WarmCache, "Also warm the in-process cache during sync cycles.")
	fs.DurationVar(&o.ShortTTL, "sync.short-ttl", o.ShortTTL, "Cache TTL for urgent readings.")
	fs.DurationVar(&o.LongTTL, "sync.long-ttl", o.LongTTL, "Cache TTL for steady-state readings.")
}
