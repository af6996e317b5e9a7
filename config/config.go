// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Deployment: the contract constants (price, supply, royalty), fixed for
//     the life of a contract and loaded from a JSON file
//   - Node settings: runtime configuration of the daemon
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Config holds daemon runtime configuration.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// DeployFile is the deployment JSON. Empty means <datadir>/<network>/deployment.json.
	DeployFile string `conf:"deploy.file"`

	DB  DBConfig
	RPC RPCConfig
	Log LogConfig
}

// DBConfig selects the state store.
type DBConfig struct {
	Backend string `conf:"db.backend"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // "*" = all
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.mysterybox
//	macOS:   ~/Library/Application Support/MysteryBox
//	Windows: %APPDATA%\MysteryBox
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mysterybox"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "MysteryBox")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "MysteryBox")
		}
		return filepath.Join(home, "AppData", "Roaming", "MysteryBox")
	default:
		return filepath.Join(home, ".mysterybox")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StatePath returns the state database location for the configured backend:
// a directory for badger, a file for bolt.
func (c *Config) StatePath() string {
	if c.DB.Backend == BackendBolt {
		return filepath.Join(c.NetworkDataDir(), "state.db")
	}
	return filepath.Join(c.NetworkDataDir(), "state")
}

// KeysDir returns the directory for CLI key files.
func (c *Config) KeysDir() string {
	return filepath.Join(c.NetworkDataDir(), "keys")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DeploymentFile returns the deployment JSON path.
func (c *Config) DeploymentFile() string {
	if c.DeployFile != "" {
		return c.DeployFile
	}
	return filepath.Join(c.NetworkDataDir(), "deployment.json")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "mysterybox.conf")
}
