package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultPingTimeout = 5 * time.Second
	// The bus is best-effort, so a publish gives up quickly instead of
	// retrying against a broker that is down.
	busMaxRetries = 1
)

// Config captures the settings of the event bus Redis client.
type Config struct {
	Addr        string
	DB          int
	PingTimeout time.Duration
}

// Connect returns a Redis client for the event bus. An unreachable server at
// startup is logged and the client is returned anyway: go-redis dials lazily
// on every command, so publishing resumes once Redis is back and readiness
// reports the outage meanwhile.
func Connect(ctx context.Context, cfg Config, log zerolog.Logger) *redis.Client {
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		DB:         cfg.DB,
		MaxRetries: busMaxRetries,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable, event bus will publish once it recovers")
		return client
	}
	log.Info().Str("addr", cfg.Addr).Msg("connected to Redis")
	return client
}
