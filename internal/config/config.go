package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all vibemesh configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Remote   RemoteConfig   `toml:"remote"`
	Mesh     MeshConfig     `toml:"mesh"`
	Agent    AgentConfig    `toml:"agent"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type RemoteConfig struct {
	BaseURL        string `toml:"base_url"`        // shared backing store; empty = fully offline
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type MeshConfig struct {
	TTLHours int `toml:"ttl_hours"` // validity window for gossiped deltas
}

type AgentConfig struct {
	Handle string `toml:"handle"` // default pseudonymous agent handle
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38888,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Remote: RemoteConfig{
			BaseURL:        "",
			TimeoutSeconds: 10,
		},
		Mesh: MeshConfig{
			TTLHours: 6,
		},
		Agent: AgentConfig{
			Handle: "",
		},
	}
}

// DefaultPath returns the default config file path: ~/.vibemesh/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".vibemesh", "config.toml"), nil
}

// Load reads the config file at path over the defaults. A missing file is
// not an error — defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
