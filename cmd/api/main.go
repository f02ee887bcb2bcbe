package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"stealthcompany.com/erdashboard/internal/config"
	"stealthcompany.com/erdashboard/internal/couchbase"
	"stealthcompany.com/erdashboard/internal/emergency"
	"stealthcompany.com/erdashboard/internal/fetch"
	"stealthcompany.com/erdashboard/internal/http_rest"
	"stealthcompany.com/erdashboard/internal/hub"
	"stealthcompany.com/erdashboard/internal/metrics"
	"stealthcompany.com/erdashboard/internal/orchestrator"
	"stealthcompany.com/erdashboard/internal/refresher"
	"stealthcompany.com/erdashboard/internal/waittime"
	"stealthcompany.com/erdashboard/pkg/zerolog_config"
)

const (
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 15 * time.Second
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	zerolog_config.SetAppPrefix("erdashboard-api")
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Dashboard service failed")
	}

	log.Info().Msg("Dashboard service shutdown complete")
}

func run(cfg config.Config) error {
	log.Info().
		Str("port", cfg.Port).
		Dur("refresh_interval", cfg.RefreshInterval).
		Bool("configured", emergency.IsConfigured(cfg.APIBaseURL)).
		Msg("Starting erdashboard-api service")

	if !emergency.IsConfigured(cfg.APIBaseURL) {
		log.Warn().Msg("API_BASE_URL is not configured, serving mock data")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalHandler := orchestrator.NewSignalHandler()
	defer signalHandler.Stop()
	signalHandler.HandleSignals(ctx, cancel)

	calc := waittime.NewCalculator(waittime.SystemClock, cfg.TimestampLocation)
	service := emergency.NewService(cfg.APIBaseURL, fetch.NewFetcher(cfg.APITimeout), calc)

	pushHub := hub.New()
	publishers := []refresher.Publisher{pushHub}

	var store *couchbase.Client
	if cfg.CouchbaseEnabled() {
		client, err := couchbase.NewClient(cfg.Couchbase, cfg.SnapshotTTL)
		if err != nil {
			log.Error().Err(err).Msg("Snapshot store unavailable, continuing without it")
		} else {
			defer func() {
				if err := client.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close Couchbase connection")
				}
			}()
			store = client
			publishers = append(publishers, store)
		}
	}

	refresh := refresher.New(service, refresher.Options{
		Interval: cfg.RefreshInterval,
		Limiter:  rate.NewLimiter(cfg.RefreshRateLimit, cfg.RefreshBurst),
	}, publishers...)

	if store != nil {
		restoreSnapshot(ctx, store, refresh)
	}

	metrics.StartSystemMetrics(ctx, systemMetricsInterval)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           http_rest.SetupRoutes(refresh, pushHub.ServeWS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sm := orchestrator.NewServiceManager()
	sm.Add("push-hub", func(ctx context.Context) error {
		pushHub.Run(ctx)
		return nil
	})
	sm.Add("refresher", func(ctx context.Context) error {
		refresh.Start(ctx)
		<-ctx.Done()
		refresh.Stop()
		return nil
	})
	sm.Add("http", orchestrator.HTTPServer(server, shutdownTimeout))

	return sm.Run(ctx)
}

// restoreSnapshot serves the last stored snapshot until the first cycle completes
func restoreSnapshot(ctx context.Context, store *couchbase.Client, refresh *refresher.Refresher) {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	snapshot, ok, err := store.Load(loadCtx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to restore stored snapshot")
		return
	}
	if !ok {
		log.Info().Msg("No stored snapshot to restore")
		return
	}

	if refresh.Seed(snapshot) {
		log.Info().
			Str("cycle_id", snapshot.CycleID).
			Time("updated_at", snapshot.UpdatedAt).
			Msg("Restored stored snapshot")
	}
}
