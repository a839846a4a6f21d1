package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultPort       = 8080
	defaultSQLitePath = "data/workshop.db"
	defaultTick       = 100 * time.Millisecond
	minTick           = 10 * time.Millisecond
)

// WorkshopConfig is the workshop.yaml file.
type WorkshopConfig struct {
	Version  int `yaml:"version"`
	Workshop struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"workshop"`
	HTTP struct {
		Port    int    `yaml:"port"`
		TLSCert string `yaml:"tls_cert"`
		TLSKey  string `yaml:"tls_key"`
	} `yaml:"http"`
	MQTT struct {
		Disabled    bool   `yaml:"disabled"`
		Required    bool   `yaml:"required"`
		Broker      string `yaml:"broker"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Storage struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	// Catalog is a tool catalog file; empty selects the built-in catalog.
	Catalog      string        `yaml:"catalog"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *WorkshopConfig {
	cfg := &WorkshopConfig{Version: 1}
	cfg.Workshop.ID = "workshop"
	cfg.Workshop.Name = "Repair Workshop"
	return cfg
}

// LoadWorkshopConfig reads and validates a workshop.yaml file.
func LoadWorkshopConfig(path string) (*WorkshopConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported workshop.yaml version: %d", cfg.Version)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that have no usable default.
func (c *WorkshopConfig) Validate() error {
	if c.Workshop.ID == "" {
		return fmt.Errorf("workshop.id is required")
	}
	if p := c.HTTP.Port; p < 0 || p > 65535 {
		return fmt.Errorf("http.port out of range: %d", p)
	}
	switch c.Storage.Driver {
	case "", DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.TickInterval != 0 && c.TickInterval < minTick {
		return fmt.Errorf("tick_interval must be at least %s, got %s", minTick, c.TickInterval)
	}
	return nil
}

// HTTPPort returns the configured HTTP port, defaulting to 8080 if not set.
func (c *WorkshopConfig) HTTPPort() int {
	if c.HTTP.Port == 0 {
		return defaultPort
	}
	return c.HTTP.Port
}

// TopicPrefix returns the MQTT topic prefix, defaulting to workshop/<id>.
func (c *WorkshopConfig) TopicPrefix() string {
	if c.MQTT.TopicPrefix != "" {
		return c.MQTT.TopicPrefix
	}
	return "workshop/" + c.Workshop.ID
}

// StorageDriver returns the storage driver, defaulting to sqlite.
func (c *WorkshopConfig) StorageDriver() string {
	if c.Storage.Driver == "" {
		return DriverSQLite
	}
	return c.Storage.Driver
}

// SQLitePath returns the SQLite database path.
func (c *WorkshopConfig) SQLitePath() string {
	if c.Storage.SQLitePath == "" {
		return defaultSQLitePath
	}
	return c.Storage.SQLitePath
}

// Tick returns the game timer period, defaulting to 100ms.
func (c *WorkshopConfig) Tick() time.Duration {
	if c.TickInterval == 0 {
		return defaultTick
	}
	return c.TickInterval
}

// DisplayName returns the workshop name, falling back to its id.
func (c *WorkshopConfig) DisplayName() string {
	if c.Workshop.Name != "" {
		return c.Workshop.Name
	}
	return c.Workshop.ID
}
