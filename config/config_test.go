package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadFile_ParsesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mysterybox.conf")
	content := `# comment
network = testnet
rpc.port = 9000
rpc.allowed = 127.0.0.1, 10.0.0.0/8
log.level = "debug"
db.backend = BOLT

unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if values["log.level"] != "debug" {
		t.Errorf("quotes not stripped: %q", values["log.level"])
	}

	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.Network != Testnet {
		t.Errorf("Network = %s, want testnet", cfg.Network)
	}
	if cfg.RPC.Port != 9000 {
		t.Errorf("RPC.Port = %d, want 9000", cfg.RPC.Port)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.0/8" {
		t.Errorf("AllowedIPs = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.DB.Backend != BackendBolt {
		t.Errorf("DB.Backend = %q, want bolt", cfg.DB.Backend)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	os.WriteFile(path, []byte("network testnet\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("line without '=' should fail")
	}
}

func TestApplyFileConfig_BadPort(t *testing.T) {
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, map[string]string{"rpc.port": "http"}); err == nil {
		t.Error("non-numeric port should fail")
	}
}

func TestApplyFileConfig_Values(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{
		"rpc":      "off",
		"deploy":   "/srv/box.json",
		"log.json": "yes",
		"network":  "TESTNET",
	})
	if err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.RPC.Enabled || !cfg.Log.JSON {
		t.Errorf("booleans not applied: rpc=%v json=%v", cfg.RPC.Enabled, cfg.Log.JSON)
	}
	if cfg.DeployFile != "/srv/box.json" {
		t.Errorf("DeployFile = %q", cfg.DeployFile)
	}
	if cfg.Network != Testnet {
		t.Errorf("Network = %q, want testnet", cfg.Network)
	}

	if err := ApplyFileConfig(cfg, map[string]string{"log.json": "maybe"}); err == nil {
		t.Error("invalid boolean should fail")
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	for _, network := range []NetworkType{Mainnet, Testnet} {
		t.Run(string(network), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mysterybox.conf")
			if err := WriteDefaultConfig(path, network); err != nil {
				t.Fatalf("WriteDefaultConfig: %v", err)
			}
			values, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if _, ok := values["datadir"]; ok {
				t.Error("datadir should be commented out")
			}

			want := Default(network)
			got := Default(Mainnet)
			got.DataDir = want.DataDir
			if err := ApplyFileConfig(got, values); err != nil {
				t.Fatalf("ApplyFileConfig: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip = %+v, want %+v", got, want)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--testnet", "--rpc=false", "--db-backend", "memory", "--log-json"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if f.Network != "testnet" {
		t.Errorf("Network = %q", f.Network)
	}
	cfg := DefaultTestnet()
	if err := ApplyFlags(cfg, f); err != nil {
		t.Fatalf("ApplyFlags: %v", err)
	}
	if cfg.RPC.Enabled {
		t.Error("--rpc=false should disable RPC")
	}
	if cfg.DB.Backend != BackendMemory {
		t.Errorf("Backend = %q", cfg.DB.Backend)
	}
	if !cfg.Log.JSON {
		t.Error("--log-json should enable JSON logs")
	}

	if _, err := ParseFlags([]string{"extra", "--rpc-port", "1"}); err == nil {
		t.Error("flag after positional argument should fail")
	}
	if _, err := ParseFlags([]string{"--no-such-flag"}); err == nil {
		t.Error("unknown flag should fail")
	}
	if _, err := ParseFlags([]string{"--rpc-port", "http"}); err == nil {
		t.Error("non-numeric port flag should fail")
	}
	if _, err := ParseFlags([]string{"--log-json=perhaps"}); err == nil {
		t.Error("invalid boolean flag should fail")
	}

	f, err = ParseFlags([]string{"--rpc-port", "1", "--rpc-port", "2", "--datadir", "/tmp/box"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if f.DataDir != "/tmp/box" {
		t.Errorf("DataDir = %q", f.DataDir)
	}
	cfg = DefaultMainnet()
	if err := ApplyFlags(cfg, f); err != nil {
		t.Fatalf("ApplyFlags: %v", err)
	}
	if cfg.RPC.Port != 2 {
		t.Errorf("RPC.Port = %d, want the last flag", cfg.RPC.Port)
	}

	f, err = ParseFlags([]string{"-h"})
	if err != nil || !f.Help {
		t.Errorf("-h: help=%v err=%v", f != nil && f.Help, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad network", func(c *Config) { c.Network = "devnet" }, true},
		{"no datadir", func(c *Config) { c.DataDir = "" }, true},
		{"bad backend", func(c *Config) { c.DB.Backend = "leveldb" }, true},
		{"empty backend defaults", func(c *Config) { c.DB.Backend = "" }, false},
		{"bad port", func(c *Config) { c.RPC.Port = 70000 }, true},
		{"bad allowed", func(c *Config) { c.RPC.AllowedIPs = []string{"localhost"} }, true},
		{"cidr allowed", func(c *Config) { c.RPC.AllowedIPs = []string{"192.168.0.0/16"} }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			cfg.DataDir = t.TempDir()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()

	// First run writes the default config file.
	cfg, _, err := Load([]string{"--datadir", dir, "--testnet"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPC.Port != DefaultTestnet().RPC.Port {
		t.Errorf("RPC.Port = %d, want testnet default", cfg.RPC.Port)
	}
	if _, err := os.Stat(filepath.Join(dir, "mysterybox.conf")); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if _, err := os.Stat(cfg.KeysDir()); err != nil {
		t.Errorf("keys dir not created: %v", err)
	}

	// File overrides defaults, flags override the file.
	conf := "network = testnet\nrpc.port = 9100\nlog.level = warn\n"
	if err := os.WriteFile(filepath.Join(dir, "mysterybox.conf"), []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, _, err = Load([]string{"--datadir", dir, "--testnet", "--log-level", "debug"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPC.Port != 9100 {
		t.Errorf("RPC.Port = %d, want 9100 from file", cfg.RPC.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug from flag", cfg.Log.Level)
	}
	if cfg.DeploymentFile() != filepath.Join(dir, "testnet", "deployment.json") {
		t.Errorf("DeploymentFile = %s", cfg.DeploymentFile())
	}
}

func TestStatePath(t *testing.T) {
	cfg := DefaultMainnet()
	cfg.DataDir = "/data"
	if got := cfg.StatePath(); got != filepath.Join("/data", "mainnet", "state") {
		t.Errorf("badger StatePath = %s", got)
	}
	cfg.DB.Backend = BackendBolt
	if got := cfg.StatePath(); got != filepath.Join("/data", "mainnet", "state.db") {
		t.Errorf("bolt StatePath = %s", got)
	}
}
