package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the balance store and verifies it answers.
// A positive opTimeout bounds dial, read and write unless the URL already
// sets them.
func NewRedisClient(ctx context.Context, url string, opTimeout time.Duration) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opTimeout > 0 {
		if opt.DialTimeout == 0 {
			opt.DialTimeout = opTimeout
		}
		if opt.ReadTimeout == 0 {
			opt.ReadTimeout = opTimeout
		}
		if opt.WriteTimeout == 0 {
			opt.WriteTimeout = opTimeout
		}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opt.Addr, err)
	}
	return client, nil
}
