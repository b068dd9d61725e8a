package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// PasswordEnvVar overrides every other source of the keystore password.
const PasswordEnvVar = "DSISTAKE_WALLET_PASSWORD"

// Config represents the complete client configuration
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Contracts ContractsConfig `yaml:"contracts"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Mock swaps the chain gateway for an in-memory contract.
	Mock bool `yaml:"mock"`
}

// NetworkConfig describes the expected chain. It doubles as the parameters
// sent when asking a wallet node to add or switch to the network.
type NetworkConfig struct {
	ChainID      int64    `yaml:"chain_id" validate:"gt=0"`
	Name         string   `yaml:"name" validate:"required"`
	Currency     string   `yaml:"currency" validate:"required"`
	Decimals     int      `yaml:"decimals" validate:"gte=0,lte=18"`
	RPCURLs      []string `yaml:"rpc_urls" validate:"required,min=1,dive,url"`
	ExplorerURLs []string `yaml:"explorer_urls" validate:"dive,url"`
}

// ContractsConfig holds deployed contract addresses
type ContractsConfig struct {
	StakingAddress string `yaml:"staking_address"`
}

// WalletConfig contains keystore settings
type WalletConfig struct {
	KeystoreDir  string `yaml:"keystore_dir" validate:"required"`
	SessionFile  string `yaml:"session_file" validate:"required"`
	PasswordFile string `yaml:"password_file"`
}

// ClientConfig tunes RPC and transaction behaviour
type ClientConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval" validate:"gte=1s"`
	RPCRateLimit       float64       `yaml:"rpc_rate_limit" validate:"gte=0"`
	RPCBurst           int           `yaml:"rpc_burst" validate:"gte=1"`
	BlockConfirmations int           `yaml:"block_confirmations" validate:"gte=0"`
	MaxGasPriceGwei    int64         `yaml:"max_gas_price_gwei" validate:"gte=0"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// MetricsConfig contains the optional Prometheus listener used by watch.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the BSC testnet configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".dsistake")

	return &Config{
		Network: NetworkConfig{
			ChainID:      97,
			Name:         "BSC Testnet",
			Currency:     "tBNB",
			Decimals:     18,
			RPCURLs:      []string{"https://data-seed-prebsc-1-s1.binance.org:8545/"},
			ExplorerURLs: []string{"https://testnet.bscscan.com"},
		},
		Wallet: WalletConfig{
			KeystoreDir: filepath.Join(dataDir, "keystore"),
			SessionFile: filepath.Join(dataDir, "session.yaml"),
		},
		Client: ClientConfig{
			PollInterval:       30 * time.Second,
			RPCRateLimit:       10,
			RPCBurst:           5,
			BlockConfirmations: 0,
			MaxGasPriceGwei:    20,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load loads configuration from file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q check", strings.ToLower(fe.Namespace()), fe.Tag())
		}
		return err
	}

	// Contract address validation (only when talking to a real chain)
	if !c.Mock {
		if err := validateEthAddress("staking_address", c.Contracts.StakingAddress); err != nil {
			return err
		}
	}

	return nil
}

// PasswordFromEnv returns the keystore password from the environment, if set.
func PasswordFromEnv() (string, bool) {
	return os.LookupEnv(PasswordEnvVar)
}

// validateEthAddress checks that an Ethereum address is 0x-prefixed, 40 hex chars, and non-zero.
func validateEthAddress(name, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required when mock is false", name)
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("%s must start with 0x, got %q", name, addr)
	}
	hexPart := addr[2:]
	if len(hexPart) != 40 {
		return fmt.Errorf("%s must be 42 characters (0x + 40 hex), got %d", name, len(addr))
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return fmt.Errorf("%s contains invalid hex characters: %w", name, err)
	}
	if strings.Trim(hexPart, "0") == "" {
		return fmt.Errorf("%s must not be the zero address", name)
	}
	return nil
}

// expandPaths expands ~ in all path fields
func (c *Config) expandPaths() {
	c.Wallet.KeystoreDir = expandPath(c.Wallet.KeystoreDir)
	c.Wallet.SessionFile = expandPath(c.Wallet.SessionFile)
	c.Wallet.PasswordFile = expandPath(c.Wallet.PasswordFile)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".dsistake", "config.yaml")
}

// EnsureDirectories creates the keystore directory and the session file's parent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Wallet.KeystoreDir, filepath.Dir(c.Wallet.SessionFile)} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
