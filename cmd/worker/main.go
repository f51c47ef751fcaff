package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/promptvault/promptvault/internal/cache"
	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/database"
	"github.com/promptvault/promptvault/internal/metrics"
	"github.com/promptvault/promptvault/internal/queue"
	"github.com/promptvault/promptvault/internal/queue/workers"
	"github.com/promptvault/promptvault/internal/resolver"
	"github.com/promptvault/promptvault/internal/store"
	"github.com/promptvault/promptvault/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	eng := resolver.New(store.NewPostgresStore(db), resolver.Options{
		Cache:       cache.NewRedisCache(rdb),
		Metrics:     metrics.NewRedisSink(rdb),
		CacheTTL:    cfg.Resolver.CacheTTL,
		MaxDepth:    cfg.Resolver.MaxDepth,
		Parallelism: cfg.Resolver.Parallelism,
		Strict:      cfg.Resolver.MissingRefPolicy == "strict",
	})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	warmWorker := workers.NewWarmCacheWorker(eng)
	webhookWorker := workers.NewWebhookWorker(webhook.NewDeliverer(db))

	registry.Register(queue.TypeCacheWarm, asynq.HandlerFunc(warmWorker.ProcessTask))
	registry.Register(queue.TypeWebhookDeliver, asynq.HandlerFunc(webhookWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
