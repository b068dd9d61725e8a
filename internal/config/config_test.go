package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testStakingAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Contracts.StakingAddress = testStakingAddress
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Network.ChainID != 97 {
		t.Errorf("expected chain id 97, got %d", cfg.Network.ChainID)
	}
	if cfg.Network.Currency != "tBNB" {
		t.Errorf("expected currency tBNB, got %s", cfg.Network.Currency)
	}
	if len(cfg.Network.RPCURLs) != 1 || !strings.Contains(cfg.Network.RPCURLs[0], "prebsc") {
		t.Errorf("unexpected rpc urls %v", cfg.Network.RPCURLs)
	}
	if cfg.Client.PollInterval != 30*time.Second {
		t.Errorf("expected 30s poll interval, got %s", cfg.Client.PollInterval)
	}
	if cfg.Mock {
		t.Error("mock should be off by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing staking address", func(c *Config) { c.Contracts.StakingAddress = "" }, "staking_address is required"},
		{"mock skips address", func(c *Config) { c.Contracts.StakingAddress = ""; c.Mock = true }, ""},
		{"no prefix", func(c *Config) { c.Contracts.StakingAddress = strings.TrimPrefix(testStakingAddress, "0x") }, "must start with 0x"},
		{"short address", func(c *Config) { c.Contracts.StakingAddress = "0x1234" }, "42 characters"},
		{"bad hex", func(c *Config) { c.Contracts.StakingAddress = "0x" + strings.Repeat("z", 40) }, "invalid hex"},
		{"zero address", func(c *Config) { c.Contracts.StakingAddress = "0x" + strings.Repeat("0", 40) }, "zero address"},
		{"zero chain id", func(c *Config) { c.Network.ChainID = 0 }, "chainid"},
		{"no rpc urls", func(c *Config) { c.Network.RPCURLs = nil }, "rpcurls"},
		{"bad rpc url", func(c *Config) { c.Network.RPCURLs = []string{"not a url"} }, "rpcurls"},
		{"poll too fast", func(c *Config) { c.Client.PollInterval = 100 * time.Millisecond }, "pollinterval"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "format"},
		{"metrics addr", func(c *Config) { c.Metrics.ListenAddr = "127.0.0.1:9090" }, ""},
		{"bad metrics addr", func(c *Config) { c.Metrics.ListenAddr = "nope" }, "listenaddr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := validConfig()
	cfg.Client.PollInterval = 45 * time.Second
	cfg.Metrics.ListenAddr = "127.0.0.1:9464"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Contracts.StakingAddress != testStakingAddress {
		t.Errorf("staking address = %s", loaded.Contracts.StakingAddress)
	}
	if loaded.Client.PollInterval != 45*time.Second {
		t.Errorf("poll interval = %s", loaded.Client.PollInterval)
	}
	if loaded.Metrics.ListenAddr != "127.0.0.1:9464" {
		t.Errorf("metrics addr = %s", loaded.Metrics.ListenAddr)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Network.ChainID != 97 {
		t.Errorf("expected defaults, got chain id %d", cfg.Network.ChainID)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("network: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "network:\n  chain_id: 0\nmock: true\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected invalid configuration error, got %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/keystore"); got != filepath.Join(home, "keystore") {
		t.Errorf("expandPath(~/keystore) = %s", got)
	}
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %s", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.Wallet.KeystoreDir = filepath.Join(dir, "ks")
	cfg.Wallet.SessionFile = filepath.Join(dir, "state", "session.yaml")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, d := range []string{cfg.Wallet.KeystoreDir, filepath.Dir(cfg.Wallet.SessionFile)} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", d)
		}
	}
}

func TestPasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnvVar, "hunter2")
	pw, ok := PasswordFromEnv()
	if !ok || pw != "hunter2" {
		t.Errorf("PasswordFromEnv = %q, %v", pw, ok)
	}
}
