package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialer_ConnConfig(t *testing.T) {
	t.Setenv("PGHOST", "ignored.example.com")
	t.Setenv("PGSSLMODE", "disable")

	d := NewDialer(Options{
		Host:           "postgres-db.abc.us-east-1.rds.amazonaws.com",
		Port:           5433,
		User:           "willwang",
		Password:       "s3cret",
		ConnectTimeout: 5 * time.Second,
	})

	cfg, err := d.connConfig("analytics")

	require.NoError(t, err)
	assert.Equal(t, "postgres-db.abc.us-east-1.rds.amazonaws.com", cfg.Host)
	assert.Equal(t, uint16(5433), cfg.Port)
	assert.Equal(t, "analytics", cfg.Database)
	assert.Equal(t, "willwang", cfg.User)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Empty(t, cfg.Fallbacks)
}

func TestDialer_ConnConfigTLS(t *testing.T) {
	d := NewDialer(Options{
		Host: "postgres-db.abc.us-east-1.rds.amazonaws.com",
		Port: 5432,
		User: "willwang",
	})

	t.Run("require", func(t *testing.T) {
		t.Setenv("PGSSLMODE", "require")

		cfg, err := d.connConfig("postgres")
		require.NoError(t, err)
		require.NotNil(t, cfg.TLSConfig)
		assert.Equal(t, "postgres-db.abc.us-east-1.rds.amazonaws.com", cfg.Host)
		for _, fb := range cfg.Fallbacks {
			assert.NotNil(t, fb.TLSConfig, "require must not fall back to plaintext")
		}
	})

	t.Run("prefer", func(t *testing.T) {
		t.Setenv("PGSSLMODE", "prefer")

		cfg, err := d.connConfig("postgres")
		require.NoError(t, err)
		require.NotNil(t, cfg.TLSConfig)
		require.NotEmpty(t, cfg.Fallbacks)
		assert.Equal(t, "postgres-db.abc.us-east-1.rds.amazonaws.com", cfg.Fallbacks[0].Host)
	})

	t.Run("verify-full", func(t *testing.T) {
		t.Setenv("PGSSLMODE", "verify-full")

		cfg, err := d.connConfig("postgres")
		require.NoError(t, err)
		require.NotNil(t, cfg.TLSConfig)
		assert.Equal(t, "postgres-db.abc.us-east-1.rds.amazonaws.com", cfg.TLSConfig.ServerName)
	})
}

func TestDialer_ConnConfigQuotesValues(t *testing.T) {
	t.Setenv("PGSSLMODE", "disable")

	d := NewDialer(Options{Host: "localhost", Port: 5432, User: "o'brien"})

	cfg, err := d.connConfig(`my db\x`)
	require.NoError(t, err)
	assert.Equal(t, "o'brien", cfg.User)
	assert.Equal(t, `my db\x`, cfg.Database)
}
