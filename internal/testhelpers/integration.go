//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// IntegrationTestConfig holds addresses of the backing services used by integration tests.
type IntegrationTestConfig struct {
	DatabaseURL   string
	MemcachedAddr string
	RedisAddr     string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if DATABASE_URL is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return IntegrationTestConfig{
		DatabaseURL:   databaseURL,
		MemcachedAddr: memcachedAddr,
		RedisAddr:     redisAddr,
	}
}

// ResetDatabase empties every table and restarts id sequences so each test starts from
// an empty schema. The schema must already be applied.
func ResetDatabase(t *testing.T, databaseURL string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect %s: %v", databaseURL, err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, `TRUNCATE weather_data, users, provinces RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

// UniqueKey returns a key scoped to the running test, for shared caches that cannot be
// flushed between tests.
func UniqueKey(t *testing.T, suffix string) string {
	return t.Name() + ":" + suffix + ":" + time.Now().Format("150405.000000000")
}
