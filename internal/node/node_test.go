package node

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Klingon-tech/mysterybox/config"
	"github.com/Klingon-tech/mysterybox/internal/rpcclient"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.mysterybox/deployment.json", filepath.Join(home, ".mysterybox/deployment.json")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		path    string
	}{
		{config.BackendBadger, filepath.Join(dir, "badger")},
		{config.BackendBolt, filepath.Join(dir, "bolt", "state.db")},
		{config.BackendMemory, ""},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			db, err := openDB(tt.backend, tt.path)
			if err != nil {
				t.Fatalf("openDB: %v", err)
			}
			defer db.Close()
			if err := db.Put([]byte("k"), []byte("v")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := db.Get([]byte("k"))
			if err != nil || string(got) != "v" {
				t.Errorf("Get = %q, %v", got, err)
			}
		})
	}
}

func TestOpenDB_UnknownBackend(t *testing.T) {
	if _, err := openDB("leveldb", t.TempDir()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(config.Testnet)
	cfg.DataDir = t.TempDir()
	cfg.DB.Backend = config.BackendMemory
	cfg.RPC.Port = 0
	cfg.Log.Level = "error"
	return cfg
}

func TestLoadOrWriteDeployment(t *testing.T) {
	cfg := testConfig(t)

	first, created, err := loadOrWriteDeployment(cfg)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if !created {
		t.Error("expected deployment file to be written")
	}
	if _, err := os.Stat(cfg.DeploymentFile()); err != nil {
		t.Fatalf("deployment file missing: %v", err)
	}

	second, created, err := loadOrWriteDeployment(cfg)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if created {
		t.Error("existing deployment file was rewritten")
	}
	h1, _ := first.Hash()
	h2, _ := second.Hash()
	if h1 != h2 {
		t.Errorf("deployment hash changed across reload: %s != %s", h1, h2)
	}
}

func TestLoadOrWriteDeployment_Invalid(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.DeploymentFile()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.DeploymentFile(), []byte(`{"capacity":0}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadOrWriteDeployment(cfg); err == nil {
		t.Fatal("expected error for invalid deployment file")
	}
}

func TestNode_StartServeStop(t *testing.T) {
	cfg := testConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer n.Stop()

	client := rpcclient.New("http://" + n.RPCAddr() + "/")
	info, err := client.Info()
	if err != nil {
		t.Fatalf("contract_info: %v", err)
	}
	if info.ContractID != n.Deployment().ContractID {
		t.Errorf("contract_id = %q, want %q", info.ContractID, n.Deployment().ContractID)
	}
	if info.DeploymentHash != n.Host().DeploymentHash() {
		t.Errorf("deployment hash mismatch")
	}

	acct, err := config.TestnetAccount()
	if err != nil {
		t.Fatalf("TestnetAccount: %v", err)
	}
	bal, err := client.Balance(acct)
	if err != nil {
		t.Fatalf("account_getBalance: %v", err)
	}
	if bal != n.Deployment().Alloc[acct.Hex()] {
		t.Errorf("balance = %d, want %d", bal, n.Deployment().Alloc[acct.Hex()])
	}
}

func TestNode_RPCDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer n.Stop()

	if n.RPCAddr() != "" {
		t.Errorf("RPCAddr = %q, want empty", n.RPCAddr())
	}
}
