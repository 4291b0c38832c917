// @title           Courier Tracking API
// @version         1.0
// @description     Real-time courier location ingestion and distribution.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
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
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/api"
	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/core/service"
	"github.com/99minutos/courier-tracking/internal/infrastructure/db/mongo"
	"github.com/99minutos/courier-tracking/internal/infrastructure/db/redis"
	"github.com/99minutos/courier-tracking/internal/infrastructure/http/handlers"
	"github.com/99minutos/courier-tracking/internal/infrastructure/queue"
	"github.com/99minutos/courier-tracking/internal/infrastructure/rabbitmq"
	"github.com/99minutos/courier-tracking/internal/infrastructure/realtime"
	"github.com/99minutos/courier-tracking/internal/pkg/config"
	"github.com/99minutos/courier-tracking/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "tracking-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	authRepo := mongo.NewAuthRepository(db)
	deliveryRepo := mongo.NewDeliveryRepository(db)
	locationRepo := mongo.NewLocationRepository(db)
	// Missing indexes slow queries down but do not break them.
	_ = mongo.EnsureIndexes(ctx, log, map[string]mongo.Indexer{
		"users":      authRepo,
		"deliveries": deliveryRepo,
		"locations":  locationRepo,
	})

	// --- Event bus (optional) ---
	var (
		bus       ports.EventPublisher
		rdb       *goredis.Client
		rabbit    handlers.Pinger
		publisher *queue.Publisher
	)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if cfg.EventBus.Enabled {
		var sink ports.EventPublisher
		switch cfg.EventBus.Driver {
		case config.BusDriverRabbitMQ:
			amqpPub := rabbitmq.NewPublisher(rabbitmq.Config{
				URL:      cfg.RabbitMQ.URL,
				Exchange: cfg.RabbitMQ.Exchange,
				Topic:    cfg.EventBus.Topic,
			}, log.With().Str("component", "rabbitmq").Logger())
			// Ingestion never depends on the bus, so a broker that is down
			// at startup only degrades readiness.
			if err := amqpPub.Open(); err != nil {
				log.Warn().Err(err).Msg("rabbitmq unreachable, event bus will publish once it recovers")
			}
			defer amqpPub.Close()
			sink, rabbit = amqpPub, amqpPub
		default:
			rdb = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB},
				log.With().Str("component", "redis").Logger())
			defer rdb.Close()
			sink = redis.NewBus(rdb, cfg.EventBus.Topic)
		}

		publisher = queue.NewPublisher(sink, queue.Options{
			Workers: cfg.EventBus.Workers,
			Buffer:  cfg.EventBus.Buffer,
		}, log.With().Str("component", "event_bus").Logger())
		publisher.Start(workerCtx)
		bus = publisher

		log.Info().
			Str("driver", cfg.EventBus.Driver).
			Str("topic", cfg.EventBus.Topic).
			Int("workers", cfg.EventBus.Workers).
			Msg("event bus enabled")
	}

	// --- Realtime fan-out ---
	registry := realtime.NewRegistry(log.With().Str("component", "registry").Logger())
	dispatcher := realtime.NewDispatcher(registry, log.With().Str("component", "dispatcher").Logger())

	// --- Services ---
	authService := service.NewAuthService(authRepo, cfg.JWTSecret, cfg.TokenTTL)
	deliveryService := service.NewDeliveryService(deliveryRepo, authRepo, log.With().Str("component", "deliveries").Logger())
	locationService := service.NewLocationService(deliveryRepo, locationRepo, bus, dispatcher,
		log.With().Str("component", "ingestion").Logger())

	e := api.NewRouter(api.Deps{
		Log:             log,
		JWTSecret:       cfg.JWTSecret,
		AuthService:     authService,
		DeliveryService: deliveryService,
		LocationService: locationService,
		Registry:        registry,
		Readiness:       handlers.NewHealthDependenciesHandler(db, rdb, rabbit),
		WSPingInterval:  cfg.WebSocket.PingInterval,
		WSWriteTimeout:  cfg.WebSocket.WriteTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	if publisher != nil {
		stopWorkers()
		publisher.Wait()
	}

	log.Info().Int("watched_deliveries", registry.Deliveries()).Msg("server stopped")
	return nil
}
