package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/dsistake/dsistake/internal/config"
)

// Global CLI flags
var (
	// ConfigPath is the config file to load
	ConfigPath string

	// MockMode swaps the chain for an in-memory contract
	MockMode bool

	// RPCURL is the wallet node used for signing; empty means the network's own endpoints
	RPCURL string

	// AssumeYes skips confirmations and accepts network switches
	AssumeYes bool
)

// loadConfig loads the config file and applies flag overrides. A real-chain
// run needs a staking contract address.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil, err
	}
	if MockMode {
		cfg.Mock = true
	}
	if !cfg.Mock && cfg.Contracts.StakingAddress == "" {
		return nil, fmt.Errorf("no staking contract configured: run 'dsistake config init --staking-address <addr>' or use --mock")
	}
	return cfg, nil
}

// loadConfigQuiet loads config, returning nil on error.
func loadConfigQuiet() *config.Config {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil
	}
	return cfg
}

// keystoreDir returns the keystore directory from config or default.
func keystoreDir() string {
	if cfg := loadConfigQuiet(); cfg != nil && cfg.Wallet.KeystoreDir != "" {
		return cfg.Wallet.KeystoreDir
	}
	return config.DefaultConfig().Wallet.KeystoreDir
}

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// GetVersion returns the version string
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	// Try to get version from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

// GetCommit returns the git commit
func GetCommit() string {
	if Commit != "unknown" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				if len(setting.Value) > 8 {
					return setting.Value[:8]
				}
				return setting.Value
			}
		}
	}
	return "unknown"
}

// GetGoVersion returns the Go version
func GetGoVersion() string {
	return runtime.Version()
}
