package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aquahub-io/aquahub/internal/pkg/metrics"
	"github.com/aquahub-io/aquahub/pkg/log"
	"github.com/aquahub-io/aquahub/pkg/options"
)

type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

// NewServer builds the HTTP API over the core service.
func NewServer(opts *options.HttpOptions, svc Service) *Server {
	return &Server{
		server: &http.Server{
			Addr:         opts.Addr,
			Handler:      newRouter(svc),
			ReadTimeout:  opts.Timeout,
			WriteTimeout: opts.Timeout,
		},
		options: opts,
	}
}

func newRouter(svc Service) *mux.Router {
	h := &handler{svc: svc, logger: log.WithName("http")}

	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Readiness Probe. Dependencies are verified at startup; a running
	// process answers reads from cache or the fallback store either way.
	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/devices/{id}/status", h.getStatus).Methods(http.MethodGet)
	v1.HandleFunc("/devices", h.listDevices).Methods(http.MethodGet)
	v1.HandleFunc("/devices", h.linkDevice).Methods(http.MethodPost)
	v1.HandleFunc("/devices/{id}", h.unlinkDevice).Methods(http.MethodDelete)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
