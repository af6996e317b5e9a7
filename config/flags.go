package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	// Network and DataDir are needed before the config file can be found.
	Network string
	DataDir string
	// Config is the config file path.
	Config string

	// Overrides are the config keys set on the command line, in flag order.
	Overrides []Override

	// Remaining args
	Args []string
}

// Override is one config key set by a flag.
type Override struct {
	Key   string
	Value string
}

// daemonFlag binds a command-line flag to the config key it overrides.
type daemonFlag struct {
	name   string
	key    string
	group  string
	usage  string
	isBool bool
}

var daemonFlags = []daemonFlag{
	{"network", "network", "Core", "Network type: mainnet (default) or testnet", false},
	{"datadir", "datadir", "Core", "Data directory (default: ~/.mysterybox)", false},
	{"deploy", "deploy.file", "Core", "Deployment JSON (default: <datadir>/<network>/deployment.json)", false},
	{"db-backend", "db.backend", "Storage", "State backend: badger (default), bolt or memory", false},
	{"rpc", "rpc.enabled", "RPC", "Enable RPC server (default: true)", true},
	{"rpc-addr", "rpc.addr", "RPC", "RPC listen address (default: 127.0.0.1)", false},
	{"rpc-port", "rpc.port", "RPC", "RPC port (mainnet: 8645, testnet: 8745)", false},
	{"rpc-allowed", "rpc.allowed", "RPC", "Allowed IPs or CIDRs for RPC (comma-separated)", false},
	{"rpc-cors", "rpc.cors", "RPC", "Allowed CORS origins for RPC (comma-separated)", false},
	{"log-level", "log.level", "Logging", "Log level: trace, debug, info, warn, error (default: info)", false},
	{"log-file", "log.file", "Logging", "Log file path (default: <datadir>/logs/mysterybox.log)", false},
	{"log-json", "log.json", "Logging", "Output logs as JSON", true},
}

// overrideValue records a flag's raw text; it is type-checked against the
// config field when applied.
type overrideValue struct {
	flags  *Flags
	key    string
	isBool bool
}

func (v *overrideValue) String() string   { return "" }
func (v *overrideValue) IsBoolFlag() bool { return v.isBool }

func (v *overrideValue) Set(s string) error {
	v.flags.Overrides = append(v.flags.Overrides, Override{Key: v.key, Value: s})
	return nil
}

// ParseFlags parses daemon command-line flags from args.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("mysteryboxd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var testnet bool
	fs.BoolVar(&f.Help, "help", false, "")
	fs.BoolVar(&f.Help, "h", false, "")
	fs.BoolVar(&f.Version, "version", false, "")
	fs.BoolVar(&f.Version, "v", false, "")
	fs.BoolVar(&testnet, "testnet", false, "")
	fs.StringVar(&f.Config, "config", "", "")
	fs.StringVar(&f.Config, "c", "", "")
	for _, df := range daemonFlags {
		fs.Var(&overrideValue{flags: f, key: df.key, isBool: df.isBool}, df.name, df.usage)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			f.Help = true
			return f, nil
		}
		return nil, err
	}
	if testnet {
		f.Overrides = append(f.Overrides, Override{Key: "network", Value: string(Testnet)})
	}
	f.Args = fs.Args()

	// A positional argument stops the parser; anything flag-like after it
	// was silently ignored.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	// Catch badly typed values now rather than after the config file loads.
	if err := ApplyFlags(Default(Mainnet), f); err != nil {
		return nil, err
	}
	for _, o := range f.Overrides {
		switch o.Key {
		case "network":
			f.Network = o.Value
		case "datadir":
			f.DataDir = o.Value
		}
	}
	return f, nil
}

// ApplyFlags applies command-line overrides to cfg. Later flags win.
func ApplyFlags(cfg *Config, f *Flags) error {
	fields := confFields(cfg)
	for _, o := range f.Overrides {
		field, ok := fields[o.Key]
		if !ok {
			return fmt.Errorf("flag for unknown config key %q", o.Key)
		}
		if err := setField(field, o.Value); err != nil {
			return fmt.Errorf("flag for %s: %w", o.Key, err)
		}
	}
	cfg.Network = NetworkType(strings.ToLower(string(cfg.Network)))
	cfg.DB.Backend = strings.ToLower(cfg.DB.Backend)
	return nil
}

// PrintUsage writes the daemon help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `Mystery Box - NFT sale ledger daemon

Usage:
  mysteryboxd [options]
  mysteryboxd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Options:
  --testnet       Shorthand for --network=testnet
  --config, -c    Config file path (default: <datadir>/mysterybox.conf)
`)
	group := ""
	for _, df := range daemonFlags {
		if df.group != group {
			group = df.group
			fmt.Fprintf(w, "\n%s Options:\n", group)
		}
		fmt.Fprintf(w, "  --%-13s %s\n", df.name, df.usage)
	}
	fmt.Fprint(w, `
Every option can also be set in the config file under its key
(e.g. --rpc-port is rpc.port). Flags take precedence over the file.

Examples:
  # Start a testnet node with the built-in testnet deployment
  mysteryboxd --testnet

  # Use bolt and a custom deployment
  mysteryboxd --db-backend=bolt --deploy=./drop.json

Note:
  The deployment file is written with defaults on first start and read on
  every start after. Its constants cannot change once the contract holds
  state; the daemon refuses to open state deployed from a different file.
`)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help || flags.Version {
		return nil, flags, nil
	}

	network := Mainnet
	if strings.EqualFold(flags.Network, string(Testnet)) {
		network = Testnet
	}
	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}
	if err := ApplyFlags(cfg, flags); err != nil {
		return nil, nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.NetworkDataDir(), cfg.KeysDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
