package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vale")
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Orders.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.Orders.TxTimeout)
	assert.Equal(t, "vale.orders", cfg.Kafka.OrderTopic)
}

func TestLoad_GeneratesDevelopmentSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vale")
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWKS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Auth.JWTSecret, 32)
	assert.True(t, cfg.Auth.GeneratedSecret)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vale")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWKS_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		Orders: OrderConfig{LockTimeout: 10 * time.Second, TxTimeout: 5 * time.Second},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "invalid PORT")
	assert.Contains(t, err.Error(), "ORDER_LOCK_TIMEOUT must be shorter")
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("ORDER_LOCK_TIMEOUT", "250ms")
	assert.Equal(t, 250*time.Millisecond, getEnvAsDuration("ORDER_LOCK_TIMEOUT", time.Second))

	t.Setenv("ORDER_LOCK_TIMEOUT", "3")
	assert.Equal(t, 3*time.Second, getEnvAsDuration("ORDER_LOCK_TIMEOUT", time.Second))

	t.Setenv("ORDER_LOCK_TIMEOUT", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("ORDER_LOCK_TIMEOUT", time.Second))
}
