package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-practice/internal/app"
	"quiz-practice/internal/config"
	"quiz-practice/internal/infra/memory"
	infraredis "quiz-practice/internal/infra/redis"
	"quiz-practice/internal/infra/sqlite"
	"quiz-practice/internal/store"
)

// backend holds the durable storage and the clients it depends on.
type backend struct {
	storage store.Storage
	redis   *redis.Client
	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Printf("close backend: %v", err)
		}
	}
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, b.redis.Close)
	}

	switch cfg.Storage.Backend {
	case config.BackendRedis:
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		prefix := cfg.Storage.Prefix
		if prefix == "" {
			prefix = "practice"
		}
		b.storage = infraredis.NewStorage(b.redis, prefix)
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, s.Close)
		b.storage = s
	default:
		log.Printf("storage backend is in-memory; progress is lost on restart")
		b.storage = memory.NewStorage()
	}
	return b, nil
}

func sessionTTL(cfg config.Config) time.Duration {
	return config.TTLDuration(cfg.Session.TTL, store.DefaultSessionTTL)
}

// openStores opens the stores of one profile, e.g. user:{subject}.
func openStores(ctx context.Context, cfg config.Config, b *backend, profile string) (app.Stores, error) {
	if profile == "" {
		return app.Stores{}, fmt.Errorf("a profile is required, e.g. user:<subject> or anon:<client id>")
	}
	return app.OpenStores(ctx, store.Scoped(b.storage, profile), sessionTTL(cfg)), nil
}

func loadConfigWithBackend(ctx context.Context, path string) (config.Config, *backend, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, b, nil
}
