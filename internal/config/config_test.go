package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "chatrelay", cfg.Service.Name)
	assert.Equal(t, ":5000", cfg.Service.Addr)
	assert.Equal(t, "mongo", cfg.Store.Backend)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, 5*time.Second, cfg.Mongo.PingTimeout)
	assert.Empty(t, cfg.SecretToken)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVICE_ADDR", ":9999")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DB_MAX_OPEN_CONNS", "3")
	t.Setenv("REDIS_DIAL_TIMEOUT", "1s")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.Service.Addr)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Postgres.MaxOpenConns)
	assert.Equal(t, time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, "s3cret", cfg.SecretToken)
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "lots")
	t.Setenv("REDIS_DIAL_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 25, cfg.Postgres.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
}
