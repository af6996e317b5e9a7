package config

// Default RPC ports.
const (
	MainnetRPCPort = 8645
	TestnetRPCPort = 8745
)

// Default returns the default node configuration for the given network.
// Anything other than testnet gets the mainnet defaults.
func Default(network NetworkType) *Config {
	port := MainnetRPCPort
	if network == Testnet {
		port = TestnetRPCPort
	} else {
		network = Mainnet
	}
	return &Config{
		Network: network,
		DataDir: DefaultDataDir(),
		DB:      DBConfig{Backend: BackendBadger},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       port,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config { return Default(Mainnet) }

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config { return Default(Testnet) }
