package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/swarmcore/internal/config"
	"github.com/aescanero/swarmcore/pkg/adapters/events/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	group    = flag.String("group", "swarmwatch", "Consumer group")
	consumer = flag.String("consumer", "", "Consumer name (defaults to the hostname)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Redis.Addr == "" {
		logger.Fatal("REDIS_ADDR is required to watch the relay stream")
	}

	name := *consumer
	if name == "" {
		name, _ = os.Hostname()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}

	relay, err := redis.NewStreamsRelay(client, cfg.Redis.Stream, cfg.Redis.MaxLen, logger)
	if err != nil {
		logger.Fatal("failed to create stream relay", zap.Error(err))
	}

	if err := relay.Consume(ctx, *group, name, logMessages(logger)); err != nil {
		logger.Fatal("relay consumer failed", zap.Error(err))
	}
}

// logMessages logs every relayed message and acknowledges it
func logMessages(logger *zap.Logger) redis.Handler {
	return func(ctx context.Context, msg redis.RelayedMessage) error {
		logger.Info("swarm message",
			zap.String("stream_id", msg.StreamID),
			zap.String("id", msg.ID),
			zap.String("type", msg.Type),
			zap.ByteString("data", msg.Data))
		return nil
	}
}
