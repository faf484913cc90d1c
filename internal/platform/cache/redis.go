// Package cache constructs the single shared *redis.Client that the
// poll-manager-service due-index and cycle-lock adapters are built
// against, so bootstrap doesn't duplicate client options in two places.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache connect: ping: %w", err)
	}
	return client, nil
}
