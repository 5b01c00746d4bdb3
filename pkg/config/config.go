// Package config loads epicmint settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/epicmint/pkg/constants"
	"github.com/sigweihq/epicmint/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvContractAddress  = "EPICMINT_CONTRACT_ADDRESS"
	EnvSocialHandle     = "EPICMINT_SOCIAL_HANDLE"
	EnvPrivateKey       = "EPICMINT_PRIVATE_KEY"
	EnvKeystorePassword = "EPICMINT_KEYSTORE_PASSWORD"
	EnvRPCURL           = "EPICMINT_RPC_URL"
)

// Wallet modes
const (
	WalletNone     = "none"
	WalletKey      = "key"
	WalletKeystore = "keystore"
	WalletBridge   = "bridge"
)

type Config struct {
	Network         string       `yaml:"network"`
	ExpectedChainID string       `yaml:"expected_chain_id"`
	ContractAddress string       `yaml:"contract_address"`
	SocialHandle    string       `yaml:"social_handle"`
	RPCEndpoints    []string     `yaml:"rpc_endpoints"`
	DiscoverRPC     bool         `yaml:"discover_rpc"` // add chainlist endpoints as backups
	Wallet          WalletConfig `yaml:"wallet"`
	Log             LogConfig    `yaml:"log"`
}

type WalletConfig struct {
	Mode             string `yaml:"mode"`
	PrivateKey       string `yaml:"private_key"`
	KeystorePath     string `yaml:"keystore_path"`
	KeystorePassword string `yaml:"keystore_password"`
	BridgeURL        string `yaml:"bridge_url"`
	AutoApprove      bool   `yaml:"auto_approve"` // skip interactive prompts for the local key
	PreAuthorized    bool   `yaml:"pre_authorized"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Network:         constants.NetworkSepolia,
		ExpectedChainID: constants.SepoliaChainID,
		Wallet: WalletConfig{
			Mode:      WalletNone,
			BridgeURL: "ws://127.0.0.1:8546",
		},
		Log: LogConfig{
			File:  "epicmint.log",
			Level: "info",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides
// An empty path uses defaults and environment only
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvContractAddress); ok && v != "" {
		c.ContractAddress = v
	}
	if v, ok := lookup(EnvSocialHandle); ok && v != "" {
		c.SocialHandle = v
	}
	if v, ok := lookup(EnvRPCURL); ok && v != "" {
		c.RPCEndpoints = append([]string{v}, c.RPCEndpoints...)
	}
	if v, ok := lookup(EnvPrivateKey); ok && v != "" {
		c.Wallet.PrivateKey = v
		if c.Wallet.Mode == WalletNone {
			c.Wallet.Mode = WalletKey
		}
	}
	if v, ok := lookup(EnvKeystorePassword); ok {
		c.Wallet.KeystorePassword = v
	}
}

// Validate checks the settings before anything is dialled
func (c *Config) Validate() error {
	var errs []error

	if _, ok := constants.NetworkToChainID[c.Network]; !ok {
		errs = append(errs, fmt.Errorf("unsupported network %q", c.Network))
	}
	if !strings.HasPrefix(c.ExpectedChainID, "0x") {
		errs = append(errs, fmt.Errorf("expected_chain_id must be a 0x-prefixed hex id, got %q", c.ExpectedChainID))
	}
	if !common.IsHexAddress(c.ContractAddress) {
		errs = append(errs, fmt.Errorf("contract_address is not a valid address: %q", c.ContractAddress))
	}
	for _, endpoint := range c.RPCEndpoints {
		if err := utils.ValidateRPCURL(endpoint); err != nil {
			errs = append(errs, err)
		}
	}

	switch c.Wallet.Mode {
	case WalletNone:
	case WalletKey:
		if _, err := utils.ParsePrivateKey(c.Wallet.PrivateKey); err != nil {
			errs = append(errs, fmt.Errorf("wallet.private_key: %w", err))
		}
	case WalletKeystore:
		if c.Wallet.KeystorePath == "" {
			errs = append(errs, errors.New("wallet.keystore_path is required in keystore mode"))
		}
	case WalletBridge:
		if err := utils.ValidateBridgeURL(c.Wallet.BridgeURL); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("wallet.mode must be one of: none, key, keystore, bridge; got %q", c.Wallet.Mode))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel parses the configured log level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", l.Level)
	}
	return level, nil
}

// Contract returns the parsed contract address
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}
