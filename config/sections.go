package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/crewsched/core/factory"
	"github.com/kilianp07/crewsched/core/travel"
)

// TravelConfig selects the travel provider and bounds upstream load.
type TravelConfig struct {
	Provider       factory.ModuleConfig `json:"provider"`
	Concurrency    int                  `json:"concurrency"`
	TimeoutSeconds int                  `json:"timeout_seconds"`
	// RetryAfterSeconds is how long a failed lookup is held before retrying.
	RetryAfterSeconds int `json:"retry_after_seconds"`
}

func (c *TravelConfig) SetDefaults() {
	if c.Provider.Type == "" {
		c.Provider.Type = "static"
	}
	if c.Concurrency == 0 {
		c.Concurrency = travel.DefaultConcurrency
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
	if c.RetryAfterSeconds == 0 {
		c.RetryAfterSeconds = int(travel.DefaultRetryAfter / time.Second)
	}
}

func (c TravelConfig) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1")
	}
	if c.RetryAfterSeconds < 1 {
		return fmt.Errorf("retry_after_seconds must be at least 1")
	}
	return nil
}

// Timeout is the per-lookup deadline.
func (c TravelConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryAfter is how long a transient lookup failure reads as unknown.
func (c TravelConfig) RetryAfter() time.Duration {
	return time.Duration(c.RetryAfterSeconds) * time.Second
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// JobsFile seeds the job directory from a YAML file.
	JobsFile string `json:"jobs_file"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "crewsched.db"
	}
}

func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("path is required")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Address string `json:"address"`
	// ShutdownSeconds bounds graceful shutdown.
	ShutdownSeconds int `json:"shutdown_seconds"`
}

func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ShutdownSeconds == 0 {
		c.ShutdownSeconds = 5
	}
}

func (c APIConfig) Validate() error {
	if c.ShutdownSeconds < 0 {
		return fmt.Errorf("shutdown_seconds must not be negative")
	}
	return nil
}
