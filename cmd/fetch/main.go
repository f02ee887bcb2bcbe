// Command fetch runs one refresh cycle and prints the department summaries as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/erdashboard/internal/config"
	"stealthcompany.com/erdashboard/internal/emergency"
	"stealthcompany.com/erdashboard/internal/fetch"
	"stealthcompany.com/erdashboard/internal/orchestrator"
	"stealthcompany.com/erdashboard/internal/waittime"
	"stealthcompany.com/erdashboard/pkg/zerolog_config"
)

func main() {
	baseURL := flag.String("base-url", "", "hospital API base URL (overrides API_BASE_URL)")
	compact := flag.Bool("compact", false, "print compact JSON")
	flag.Parse()

	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *baseURL != "" {
		cfg.APIBaseURL = *baseURL
	}

	zerolog_config.SetAppPrefix("erdashboard-fetch")
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalHandler := orchestrator.NewSignalHandler()
	defer signalHandler.Stop()
	signalHandler.HandleSignals(ctx, cancel)

	calc := waittime.NewCalculator(waittime.SystemClock, cfg.TimestampLocation)
	result := emergency.NewService(cfg.APIBaseURL, fetch.NewFetcher(cfg.APITimeout), calc).FetchAll(ctx)

	for _, failure := range result.Failures {
		log.Warn().
			Err(failure.Err).
			Str("department", string(failure.Department)).
			Msg("Department returned empty data")
	}

	encoder := json.NewEncoder(os.Stdout)
	if !*compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(result.Summaries); err != nil {
		log.Fatal().Err(err).Msg("Failed to write summaries")
	}

	log.Info().
		Str("source", string(result.Source)).
		Int("failed_departments", len(result.Failures)).
		Msg("Fetch completed")
}
