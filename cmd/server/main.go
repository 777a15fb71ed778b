package main

import (
	"context"
	"github.com/Banno/consumer-api-openid-connect-example/internal/aggregation"
	"github.com/Banno/consumer-api-openid-connect-example/internal/api"
	"github.com/Banno/consumer-api-openid-connect-example/internal/auth"
	"github.com/Banno/consumer-api-openid-connect-example/internal/config"
	"github.com/Banno/consumer-api-openid-connect-example/internal/session/storage/inmem"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"os"
	"os/signal"
)

func main() {
	// Set up zerolog to use pretty printing
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out: os.Stderr,
	})
	log.Info().Msg("starting up...")

	// Load the application configuration
	log.Info().Msg("loading configuration...")
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load the configuration")
	}
	if cfg.Production {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	env := cfg.Environment
	log.Debug().Str("environment", cfg.EnvironmentName).Str("issuer", env.Issuer).Str("client_id", env.ClientID).
		Bool("pkce", env.UsePKCE).Dur("clock_tolerance", env.ClockTolerance()).Msg("")

	// Discover the OIDC provider
	log.Info().Str("issuer", env.Issuer).Msg("discovering OIDC provider...")
	provider, err := auth.NewOIDCProvider(context.Background(), env, cleanhttp.DefaultPooledClient())
	if err != nil {
		log.Fatal().Err(err).Msg("could not discover the OIDC provider")
	}

	// Initialize the in-memory session storage
	sessions, err := inmem.New()
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize the session storage")
	}

	flow := auth.NewFlow(provider, sessions, auth.Options{
		Claims:            env.Claims,
		UsePKCE:           env.UsePKCE,
		DefaultReturnPath: env.PostLoginPath,
	})
	orchestrator := aggregation.NewOrchestrator(aggregation.NewClient(env.ResourceAPIBase, nil), aggregation.Options{
		PollInterval:       cfg.PollInterval,
		PollTimeout:        cfg.PollTimeout,
		MaxPollAttempts:    cfg.MaxPollAttempts,
		PollErrorBudget:    cfg.PollErrorBudget,
		TransactionWorkers: cfg.TransactionWorkers,
	})

	// Start up the HTTP service
	log.Info().Str("address", cfg.ListenAddress()).Bool("tls", cfg.IsTLS()).Msg("starting up the HTTP service...")
	service := &api.Service{
		Config:       cfg,
		Sessions:     sessions,
		Flow:         flow,
		Orchestrator: orchestrator,
	}
	serviceErrs := make(chan error, 1)
	service.Startup(serviceErrs)
	go func() {
		err := <-serviceErrs
		log.Fatal().Err(err).Msg("the HTTP service raised an unexpected error")
	}()
	defer func() {
		log.Info().Msg("shutting down the HTTP service...")
		service.Shutdown()
	}()

	log.Info().Msg("done!")
	defer log.Info().Msg("shutting down...")

	// Wait for the application to be terminated
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt)
	<-shutdown
}
