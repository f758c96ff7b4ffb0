package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_loadConfig(t *testing.T) {
	t.Run("ok, defaults", func(t *testing.T) {
		cfg, err := loadConfig()
		require.NoError(t, err)

		require.Equal(t, ":8080", cfg.HTTPAddr)
		require.Equal(t, "staylink.db", cfg.DBFile)
		require.Equal(t, 5*time.Second, cfg.HTTPReadTimeout)
		require.Equal(t, time.Hour, cfg.TokenSweepInterval)
		require.Equal(t, 24*time.Hour, cfg.TokenRetention)
		require.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	})

	t.Run("ok, environment overrides", func(t *testing.T) {
		t.Setenv("HTTP_ADDR", ":9999")
		t.Setenv("DB_FILE", "/tmp/staylink-test.db")
		t.Setenv("WORKER_TIMEOUT", "30s")
		t.Setenv("ALLOWED_ORIGINS", "https://one.example,https://two.example")

		cfg, err := loadConfig()
		require.NoError(t, err)

		require.Equal(t, ":9999", cfg.HTTPAddr)
		require.Equal(t, "/tmp/staylink-test.db", cfg.DBFile)
		require.Equal(t, 30*time.Second, cfg.WorkerTimeout)
		require.Equal(t, []string{"https://one.example", "https://two.example"}, cfg.AllowedOrigins)
	})

	t.Run("fail, invalid sender address", func(t *testing.T) {
		t.Setenv("EMAIL_FROM", "not-an-email")

		_, err := loadConfig()
		require.Error(t, err)
	})
}
