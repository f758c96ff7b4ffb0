package main

import (
	"fmt"
	"os"
	"time"

	"github.com/evdwaal/staylink/internal/email"
	"github.com/spf13/viper"
)

type config struct {
	HTTPAddr            string        `mapstructure:"HTTP_ADDR"`
	HTTPReadTimeout     time.Duration `mapstructure:"HTTP_READ_TIMEOUT"`
	HTTPWriteTimeout    time.Duration `mapstructure:"HTTP_WRITE_TIMEOUT"`
	HTTPIdleTimeout     time.Duration `mapstructure:"HTTP_IDLE_TIMEOUT"`
	HTTPShutdownTimeout time.Duration `mapstructure:"HTTP_SHUTDOWN_TIMEOUT"`

	DBFile string `mapstructure:"DB_FILE"`

	BaseURL        string   `mapstructure:"BASE_URL"`
	EmailFrom      string   `mapstructure:"EMAIL_FROM"`
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	WorkerTimeout time.Duration `mapstructure:"WORKER_TIMEOUT"`

	TokenSweepInterval time.Duration `mapstructure:"TOKEN_SWEEP_INTERVAL"`
	TokenRetention     time.Duration `mapstructure:"TOKEN_RETENTION"`
}

// loadConfig reads configuration from the environment with an optional
// .env file as fallback. Every key has a default, only DB_FILE really
// needs to be provided in production.
func loadConfig() (config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_READ_TIMEOUT", 5*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_IDLE_TIMEOUT", 2*time.Minute)
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("DB_FILE", "staylink.db")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("EMAIL_FROM", "noreply@staylink.example")
	v.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("WORKER_TIMEOUT", 10*time.Second)
	v.SetDefault("TOKEN_SWEEP_INTERVAL", time.Hour)
	v.SetDefault("TOKEN_RETENTION", 24*time.Hour)

	if err := v.ReadInConfig(); err != nil {
		// A missing .env file is fine, the environment takes over.
		if !os.IsNotExist(err) {
			return config{}, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	var c config
	if err := v.Unmarshal(&c); err != nil {
		return config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err := email.ParseAddress(c.EmailFrom); err != nil {
		return config{}, fmt.Errorf("invalid EMAIL_FROM %q: %w", c.EmailFrom, err)
	}

	return c, nil
}
