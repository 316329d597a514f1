// Package config loads runtime settings from the environment with sane
// defaults for local development.
package config

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	// Port the HTTP/websocket server listens on
	Port int
	// Origin allowed to call the API cross-origin
	ClientOrigin string
	// How often the sweeper checks for expired sessions
	SweepInterval time.Duration
	// Maximum session age before unconditional purge
	Retention time.Duration
	// logrus level name
	LogLevel string
}

func Load() *Config {
	v := viper.New()

	v.SetDefault("port", 3000)
	v.SetDefault("client_url", "http://localhost:5173")
	v.SetDefault("sweep_interval_seconds", 60)
	v.SetDefault("session_retention_hours", 24)
	v.SetDefault("log_level", "info")

	v.AutomaticEnv()

	cfg := &Config{
		Port:          v.GetInt("port"),
		ClientOrigin:  v.GetString("client_url"),
		SweepInterval: time.Duration(v.GetInt("sweep_interval_seconds")) * time.Second,
		Retention:     time.Duration(v.GetInt("session_retention_hours")) * time.Hour,
		LogLevel:      v.GetString("log_level"),
	}

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}

	log.Debug("configuration loaded")
	return cfg
}
