package options

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/aquahub-io/aquahub/internal/synchub"
	"github.com/aquahub-io/aquahub/pkg/app"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/options"
)

// SyncdOptions aggregates all command-line options of the hub daemon.
type SyncdOptions struct {
	HttpOptions  *options.HttpOptions  `json:"http" mapstructure:"http"`
	RedisOptions *options.RedisOptions `json:"redis" mapstructure:"redis"`
	TuyaOptions  *options.TuyaOptions  `json:"tuya" mapstructure:"tuya"`
	SyncOptions  *options.SyncOptions  `json:"sync" mapstructure:"sync"`
	MqttOptions  *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	S3Options    *options.S3Options    `json:"s3" mapstructure:"s3"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

var (
	_ app.CliOptions         = (*SyncdOptions)(nil)
	_ app.LogOptionsProvider = (*SyncdOptions)(nil)
)

func NewSyncdOptions() *SyncdOptions {
	return &SyncdOptions{
		HttpOptions:  options.NewHttpOptions(),
		RedisOptions: options.NewRedisOptions(),
		TuyaOptions:  options.NewTuyaOptions(),
		SyncOptions:  options.NewSyncOptions(),
		MqttOptions:  options.NewMqttOptions(),
		S3Options:    options.NewS3Options(),
		Log:          log.NewOptions(),
	}
}

func (o *SyncdOptions) AddFlags(fs *pflag.FlagSet) {
	o.HttpOptions.AddFlags(fs)
	o.RedisOptions.AddFlags(fs)
	o.TuyaOptions.AddFlags(fs)
	o.SyncOptions.AddFlags(fs)
	o.MqttOptions.AddFlags(fs)
	o.S3Options.AddFlags(fs)
	o.Log.AddFlags(fs)
}

func (o *SyncdOptions) Complete() error {
	return nil
}

func (o *SyncdOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.TuyaOptions.Validate()...)
	errs = append(errs, o.SyncOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

func (o *SyncdOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *SyncdOptions) Config() (*synchub.Config, error) {
	return &synchub.Config{
		HttpOptions:  o.HttpOptions,
		RedisOptions: o.RedisOptions,
		TuyaOptions:  o.TuyaOptions,
		SyncOptions:  o.SyncOptions,
		MqttOptions:  o.MqttOptions,
		S3Options:    o.S3Options,
	}, nil
}
