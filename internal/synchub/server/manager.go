package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/aquahub-io/aquahub/internal/synchub/core/service"
	"github.com/aquahub-io/aquahub/internal/synchub/server/http"
	"github.com/aquahub-io/aquahub/internal/synchub/syncer"
	"github.com/aquahub-io/aquahub/pkg/log"
)

// Server defines the common interface for all long-running components (the
// HTTP API and the sync scheduler).
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of all servers.
type Manager struct {
	servers []Server
}

// NewManager creates a new server manager and initializes all sub-servers.
func NewManager(cfg *Config, svc *service.Service) (*Manager, error) {
	var servers []Server

	// HTTP API, health and metrics
	servers = append(servers, http.NewServer(cfg.HttpOptions, svc))

	// background polling loop
	servers = append(servers, syncer.New(svc, cfg.SyncOptions, log.Std()))

	return &Manager{servers: servers}, nil
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range m.servers {
		srv := s
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...")
	return g.Wait()
}
