package server

import "github.com/aquahub-io/aquahub/pkg/options"

type Config struct {
	HttpOptions *options.HttpOptions
	SyncOptions *options.SyncOptions
}
