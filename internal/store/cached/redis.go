package cached

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to redis and pings it once.
func NewClient(addr, password string) (*redis.Client, error) {
	options := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	}

	// Managed redis with a password is reached over TLS.
	if password != "" {
		options.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
