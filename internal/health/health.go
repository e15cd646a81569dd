// Package health provides health check implementations for the service's
// external dependencies. Each checker answers one question: can the
// dependency serve a request right now.
package health

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
)

// Checker is the contract readiness probes consume.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// DBChecker reports whether the market database is reachable.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a health checker over an open database handle.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database within the given context's deadline.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// RedisChecker reports whether the rating cache backend is reachable.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a health checker over a Redis client.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING within the given context's deadline.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
