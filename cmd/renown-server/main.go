package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/renown/adapters/events"
	"github.com/layer-3/renown/adapters/store"
	"github.com/layer-3/renown/adapters/tokenizer"
	"github.com/layer-3/renown/internal/config"
	"github.com/layer-3/renown/internal/logging"
	"github.com/layer-3/renown/ports"
	"github.com/layer-3/renown/service"
	transport "github.com/layer-3/renown/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

func main() {
	configPath := flag.StringP("config", "c", "renown.toml", "path to the TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "renown-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Storage.Backend == "redis" || cfg.Events.Backend == "redis" {
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach Redis: %w", err)
		}
	}

	var (
		credentialStore ports.CredentialStore
		sessionStore    ports.SessionStore
	)
	sessionOpts := []store.SessionOption{
		store.WithSessionTTL(cfg.Session.GetTTL()),
		store.WithSweepInterval(cfg.Session.GetSweepInterval()),
		store.WithLogger(logger),
	}
	switch cfg.Storage.Backend {
	case "redis":
		credentialStore = store.NewRedisCredentialStore(redisClient)
		sessionStore = store.NewRedisSessionStore(redisClient, sessionOpts...)
	default:
		memorySessions := store.NewMemorySessionStore(sessionOpts...)
		memorySessions.Start()
		defer memorySessions.Stop()

		credentialStore = store.NewMemoryCredentialStore()
		sessionStore = memorySessions
	}

	eventPub, closeEvents, err := newEventPublisher(cfg.Events.Backend, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	codec := tokenizer.NewCodec()
	verifier := service.NewVerifier(codec, credentialStore)
	credentials := service.NewCredentialService(verifier, credentialStore, eventPub, logger)
	rendezvous := service.NewRendezvous(sessionStore, eventPub, logger)

	router := transport.SetupRouter(rendezvous, credentials, logger)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("storage", cfg.Storage.Backend).
			Str("events", cfg.Events.Backend).
			Msg("renown server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newEventPublisher(backend string, client *redis.Client, logger zerolog.Logger) (ports.EventPublisher, func(), error) {
	wmLogger := logging.NewWatermillAdapter(logger)

	switch backend {
	case "redis":
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: client,
			},
			wmLogger,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		return events.NewWatermillPublisher(publisher), func() { _ = publisher.Close() }, nil
	case "gochannel":
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		return events.NewWatermillPublisher(pubSub), func() { _ = pubSub.Close() }, nil
	default:
		return events.NopPublisher{}, func() {}, nil
	}
}
