package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mleroy14/chickenhunt/internal/backend/postgres"
	"github.com/mleroy14/chickenhunt/internal/dbconfig"
	"github.com/mleroy14/chickenhunt/internal/feed"
	"github.com/mleroy14/chickenhunt/internal/gateway"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := dbconfig.NewConfigFromEnv()

	pool, err := setupPool(ctx, dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up connection pool")
	}
	defer pool.Close()

	listenerDB, err := setupListenerDB(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up listener database")
	}
	defer listenerDB.Close()

	natsURL := getEnv("NATS_URL", cfg.NATS.URL)

	jsCfg := feed.DefaultJetStreamConfig()
	if natsURL != "" {
		jsCfg.URL = natsURL
	}
	publisher, err := feed.NewJetStreamPublisher(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up publisher")
	}
	defer publisher.Close()

	relayCfg := feed.DefaultRelayConfig()
	relayCfg.DatabaseURL = dbCfg.DSN()
	relayCfg.NotifyChannel = postgres.NotifyChannel
	relay, err := feed.NewRelay(listenerDB, publisher, relayCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up relay")
	}

	consumerCfg := feed.DefaultConsumerConfig()
	if natsURL != "" {
		consumerCfg.URL = natsURL
	}
	consumer, err := feed.NewConsumer(consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up consumer")
	}
	defer consumer.Stop()

	repo := postgres.NewRepository(pool)
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	sessions := gateway.NewSessionManager(repo, consumer, engineConfig(cfg), cm)
	handler := gateway.NewHandler(sessions, cm)

	go func() {
		if err := relay.Start(ctx); err != nil {
			log.Error().Err(err).Msg("relay stopped")
		}
	}()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("consumer stopped")
		}
	}()
	go cm.Start(ctx)

	server := setupServer(handler)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	sessions.StopAll()
	cancel()
}
