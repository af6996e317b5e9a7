package config

import (
	"fmt"
	"net"

	"github.com/Klingon-tech/mysterybox/internal/log"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is required")
	}
	switch cfg.DB.Backend {
	case BackendBadger, BackendBolt, BackendMemory:
	case "":
		cfg.DB.Backend = BackendBadger
	default:
		return fmt.Errorf("db.backend must be %s, %s or %s", BackendBadger, BackendBolt, BackendMemory)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	for i, ip := range cfg.RPC.AllowedIPs {
		if net.ParseIP(ip) == nil {
			if _, _, err := net.ParseCIDR(ip); err != nil {
				return fmt.Errorf("rpc.allowed[%d] %q is not an IP or CIDR", i, ip)
			}
		}
	}
	return nil
}
