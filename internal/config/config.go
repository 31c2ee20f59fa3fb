package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.pawchat/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
}

// Profile represents a per-profile profile.toml: which marketplace account
// this client acts as and where the hosted backend lives.
type Profile struct {
	// UserID is the already-established marketplace identity. The client
	// never authenticates; it only reads this id.
	UserID string `toml:"user_id"`

	// BackendDSN is the Postgres DSN of the hosted message store.
	BackendDSN string `toml:"backend_dsn"`

	// NatsURL is the realtime insert-event channel.
	NatsURL string `toml:"nats_url"`

	// SimulatePresence enables the simulated typing/receipt timers. There is
	// no server-side presence protocol yet; with this off the client uses a
	// no-op presence implementation.
	SimulatePresence bool `toml:"simulate_presence"`
}

// Load reads the global config from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	return encode(path, cfg)
}

// LoadProfile reads a per-profile config and validates required fields.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	_, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("%s: user_id is required", path)
	}
	if p.BackendDSN == "" {
		return nil, fmt.Errorf("%s: backend_dsn is required", path)
	}
	if p.NatsURL == "" {
		return nil, fmt.Errorf("%s: nats_url is required", path)
	}
	return &p, nil
}

// SaveProfile writes a per-profile config.
func SaveProfile(path string, p *Profile) error {
	return encode(path, p)
}

func encode(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
