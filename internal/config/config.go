// Package config loads runtime configuration from the environment,
// with an optional YAML file for containerized deployments.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Admin   AdminConfig   `yaml:"admin"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"          env:"SIMEP_ADDR"          env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"SIMEP_READ_TIMEOUT"  env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SIMEP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  env:"SIMEP_IDLE_TIMEOUT"  env-default:"60s"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"SIMEP_STORE_BACKEND" env-default:"file"`
	// Path is the data directory for the file driver and the database
	// file for the sqlite driver.
	Path string `yaml:"path" env:"SIMEP_STORE_PATH" env-default:"./data"`
}

// AdminConfig holds the operator credential for the admin surface.
type AdminConfig struct {
	Password string `yaml:"password" env:"SIMEP_ADMIN_PASSWORD" env-default:"admin"`
}

// Load reads the optional config file named by SIMEP_CONFIG, then the
// environment.
func Load() (*Config, error) {
	var cfg Config
	if path := os.Getenv("SIMEP_CONFIG"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	return &cfg, nil
}
