package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/mattgrayson/pulselink/internal/config"
	"github.com/mattgrayson/pulselink/internal/metrics"
	"github.com/mattgrayson/pulselink/internal/ratelimit"
	"github.com/mattgrayson/pulselink/internal/server"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("Failed to load config from %s: %v", path, err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	opts := []server.Option{server.WithMetrics(metrics.New())}

	if cfg.RateLimit.Max > 0 {
		window := time.Duration(cfg.RateLimit.Window)
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
			}
			log.Printf("Connected to Redis at %s", cfg.RedisAddr)
			opts = append(opts, server.WithLimiter(ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Max, window)))
		} else {
			opts = append(opts, server.WithLimiter(ratelimit.NewSlidingWindow(cfg.RateLimit.Max, window)))
		}
	}

	srv := server.New(cfg, opts...)
	log.Printf("Starting pulselink server on %s", cfg.ListenAddr)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
