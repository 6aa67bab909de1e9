package repository

import (
	"context"
	"time"

	"github.com/forecastdao/tiergate/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedis connects and pings within a short deadline so startup can fall
// back to in-memory operation quickly when Redis is absent.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
