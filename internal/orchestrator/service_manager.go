package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RunFunc runs a service until ctx is done; a returned error stops every other service
type RunFunc func(ctx context.Context) error

type service struct {
	name string
	run  RunFunc
}

// ServiceManager manages the lifecycle of the in-process services
type ServiceManager struct {
	services []service
}

// NewServiceManager creates a new service manager
func NewServiceManager() *ServiceManager {
	return &ServiceManager{}
}

// Add registers a service; services start in registration order
func (sm *ServiceManager) Add(name string, run RunFunc) {
	sm.services = append(sm.services, service{name: name, run: run})
}

// Run starts every service and waits until ctx is cancelled or one of them fails.
// The first failure is returned after the remaining services have stopped.
func (sm *ServiceManager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, svc := range sm.services {
		log.Info().Str("service", svc.name).Msg("Starting service...")

		g.Go(func() error {
			err := svc.run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("service", svc.name).Msg("Service exited with error")
				return fmt.Errorf("%s: %w", svc.name, err)
			}
			log.Info().Str("service", svc.name).Msg("Service stopped")
			return nil
		})
	}

	log.Info().Int("services", len(sm.services)).Msg("All services started, waiting for completion...")

	return g.Wait()
}

// HTTPServer adapts an http.Server to a RunFunc that shuts down gracefully within shutdownTimeout
func HTTPServer(server *http.Server, shutdownTimeout time.Duration) RunFunc {
	return func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", server.Addr).Msg("Server starting")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("failed to start server: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}
