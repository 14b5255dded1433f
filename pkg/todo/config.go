package todo

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	internalshm "github.com/srediag/todo-shm/internal/shm"
	"github.com/srediag/todo-shm/pkg/shm"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "TODOSHM"

// Config holds the settings shared by every process using a list.
type Config struct {
	// Name identifies the segment; all processes sharing a list must agree on it.
	Name string `envconfig:"NAME" default:"todoshm"`
	Dir  string `envconfig:"DIR" default:"/dev/shm"`
	// Capacity is only used when creating.
	Capacity int `envconfig:"CAPACITY" default:"10"`
	// Create makes this process the owner. Set by the command, not the environment.
	Create bool `ignored:"true"`
	// LockTimeout bounds each wait for the shared lock. Zero waits forever.
	LockTimeout   time.Duration `envconfig:"LOCK_TIMEOUT" default:"0s"`
	AttachTimeout time.Duration `envconfig:"ATTACH_TIMEOUT" default:"1s"`
	// AdminAddr enables the health and metrics listener of the server command.
	AdminAddr      string `envconfig:"ADMIN_ADDR"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"warn"`
	LogDevelopment bool   `envconfig:"LOG_DEV" default:"false"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Name:          "todoshm",
		Dir:           internalshm.DefaultDir,
		Capacity:      shm.DefaultCapacity,
		AttachTimeout: time.Second,
		LogLevel:      "warn",
	}
}

// LoadConfig reads TODOSHM_* environment variables on top of the defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// VerifyConfig reports the first invalid setting.
func VerifyConfig(cfg Config) error {
	if err := internalshm.ValidateName(cfg.Name); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if cfg.Capacity <= 0 || cfg.Capacity > shm.MaxCapacity {
		return fmt.Errorf("capacity must be in [1, %d], got %d", shm.MaxCapacity, cfg.Capacity)
	}
	if cfg.LockTimeout < 0 {
		return errors.New("lock timeout must not be negative")
	}
	if cfg.AttachTimeout < 0 {
		return errors.New("attach timeout must not be negative")
	}
	return nil
}
