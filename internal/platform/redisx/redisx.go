package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// idem:reservation:create:{renterId}:{key} -> "pending" | reservation id
	KeyIdemReservationCreate = "idem:reservation:create:%s:%s"

	// dedup:{consumer}:{eventId}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)

// Options configures the client.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New creates a client. It does not dial until first use.
func New(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Key formats a key template.
func Key(template string, parts ...any) string {
	return fmt.Sprintf(template, parts...)
}

// Ping reports whether the server answers.
func Ping(ctx context.Context, rdb redis.UniversalClient) error {
	return rdb.Ping(ctx).Err()
}
