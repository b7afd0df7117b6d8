package synchub

import (
	"context"
	"time"

	redisrepo "github.com/aquahub-io/aquahub/internal/synchub/redis"
	"github.com/aquahub-io/aquahub/internal/synchub/server"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/mqtt"
)

// SyncHubServer is the main application struct.
type SyncHubServer struct {
	serverManager *server.Manager
	repo          *redisrepo.Repository
	mqttClient    mqtt.Client
}

// Run starts the application components and blocks until the context is
// canceled or a server fails.
func (a *SyncHubServer) Run(ctx context.Context) error {
	log.Info("Starting AquaHub Application...")

	err := a.serverManager.Start(ctx)

	if a.mqttClient != nil {
		dctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		a.mqttClient.Disconnect(dctx)
		cancel()
	}
	if cerr := a.repo.Close(); cerr != nil {
		log.Warn("close redis failed", "err", cerr)
	}

	return err
}
