package synchub

import (
	"context"
	"fmt"

	"github.com/aquahub-io/aquahub/internal/synchub/archive"
	"github.com/aquahub-io/aquahub/internal/synchub/core"
	"github.com/aquahub-io/aquahub/internal/synchub/core/service"
	"github.com/aquahub-io/aquahub/internal/synchub/notifier"
	redisrepo "github.com/aquahub-io/aquahub/internal/synchub/redis"
	"github.com/aquahub-io/aquahub/internal/synchub/server"
	"github.com/aquahub-io/aquahub/internal/synchub/tuya"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/mqtt"
	"github.com/aquahub-io/aquahub/pkg/options"
)

type Config struct {
	HttpOptions  *options.HttpOptions
	RedisOptions *options.RedisOptions
	TuyaOptions  *options.TuyaOptions
	SyncOptions  *options.SyncOptions
	MqttOptions  *options.MqttOptions
	S3Options    *options.S3Options
}

// NewSyncHubServer assembles the application: secondary adapters first
// (vendor client, store, notifier, archive), then the core service, then the
// ingress servers.
func (cfg *Config) NewSyncHubServer(ctx context.Context) (*SyncHubServer, error) {
	// 1. Infrastructure: fallback store
	repo, err := redisrepo.New(ctx, cfg.RedisOptions, log.Std())
	if err != nil {
		return nil, fmt.Errorf("failed to init redis store: %w", err)
	}

	// 2. Infrastructure: vendor cloud client
	vendor := tuya.NewClient(cfg.TuyaOptions, log.Std())

	// 3. Infrastructure: status notifier (optional)
	var notifierAdapter core.StatusNotifier
	var mqttClient mqtt.Client
	if cfg.MqttOptions.Enabled() {
		mqttClient, err = InitializeMQTTClient(cfg.MqttOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init notifier: %w", err)
		}
		if err := mqttClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start mqtt client: %w", err)
		}
		notifierAdapter = notifier.New(mqttClient, cfg.MqttOptions.TopicRoot, log.Std())
	}

	// 4. Infrastructure: snapshot archive (optional)
	var archiverAdapter core.SnapshotArchiver
	if cfg.S3Options.Enabled() {
		archiverAdapter, err = archive.New(ctx, cfg.S3Options, log.Std())
		if err != nil {
			return nil, fmt.Errorf("failed to init snapshot archive: %w", err)
		}
	}

	// 5. Core domain service
	svc := service.New(service.Config{
		Vendor:   vendor,
		Repo:     repo,
		Notifier: notifierAdapter,
		Archiver: archiverAdapter,
		ShortTTL: cfg.SyncOptions.ShortTTL,
		LongTTL:  cfg.SyncOptions.LongTTL,
		Logger:   log.Std(),
	})

	// 6. Ingress servers and the polling loop
	serverConfig := &server.Config{
		HttpOptions: cfg.HttpOptions,
		SyncOptions: cfg.SyncOptions,
	}
	srvManager, err := server.NewManager(serverConfig, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to init server manager: %w", err)
	}

	return &SyncHubServer{
		serverManager: srvManager,
		repo:          repo,
		mqttClient:    mqttClient,
	}, nil
}
