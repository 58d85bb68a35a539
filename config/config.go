package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"r2s/core/genesis"
)

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	GenesisFile    string `toml:"GenesisFile"`
	ChainID        uint64 `toml:"ChainID"`
	Env            string `toml:"Env"`
	LogLevel       string `toml:"LogLevel"`
	MetricsAddress string `toml:"MetricsAddress"`
	// Deployer restricts the initialize transaction to one account on a
	// ledger started without genesis.
	Deployer       string `toml:"Deployer"`

	RPC    RPC                          `toml:"rpc"`
	Ledger genesis.LedgerSpec           `toml:"ledger"`
	Tokens []genesis.TokenSpec          `toml:"tokens"`
	Alloc  map[string]map[string]string `toml:"alloc"` // addr -> token symbol -> amount
	Roles  map[string][]string          `toml:"roles"` // role -> []addr
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if cfg.GenesisFile != "" && !filepath.IsAbs(cfg.GenesisFile) {
		cfg.GenesisFile = filepath.Join(filepath.Dir(path), cfg.GenesisFile)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	cfg := &Config{
		RPCAddress: defaultRPCAddress,
		DataDir:    defaultDataDir,
		ChainID:    defaultChainID,
		Env:        defaultEnv,
		LogLevel:   defaultLogLevel,
		RPC: RPC{
			AuthTokenEnv:       defaultAuthTokenEnv,
			RateLimitPerMinute: defaultRateLimitPerMinute,
			RateLimitBurst:     defaultRateLimitBurst,
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Tokens == nil {
		c.Tokens = []genesis.TokenSpec{}
	}
	c.RPC.applyDefaults()
}

// AuthToken resolves the RPC bearer token from the configured environment
// variable.
func (c *Config) AuthToken() string {
	if c == nil || strings.TrimSpace(c.RPC.AuthTokenEnv) == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.RPC.AuthTokenEnv))
}

// DeployerAddress returns the configured deployer, or the zero address when
// none is set.
func (c *Config) DeployerAddress() common.Address {
	if c == nil || strings.TrimSpace(c.Deployer) == "" {
		return common.Address{}
	}
	return common.HexToAddress(strings.TrimSpace(c.Deployer))
}

// JWTSecret resolves the HMAC secret for RPC JWTs. It is empty unless JWT
// authentication is enabled.
func (c *Config) JWTSecret() string {
	if c == nil || !c.RPC.JWT.Enable || strings.TrimSpace(c.RPC.JWT.HSSecretEnv) == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.RPC.JWT.HSSecretEnv))
}

// GenesisSpec returns the genesis used to seed an empty ledger. A configured
// GenesisFile takes precedence over the inline ledger and token sections. The
// result is nil when neither names a ledger admin; such a node waits for an
// initialize transaction.
func (c *Config) GenesisSpec() (*genesis.GenesisSpec, error) {
	if c.GenesisFile != "" {
		spec, err := genesis.LoadGenesisSpec(c.GenesisFile)
		if err != nil {
			return nil, err
		}
		if id, ok := spec.ChainIDValue(); ok && c.ChainID != 0 && id != c.ChainID {
			return nil, fmt.Errorf("genesis chain id %d does not match configured chain id %d", id, c.ChainID)
		}
		return spec, nil
	}
	if strings.TrimSpace(c.Ledger.Admin) == "" {
		return nil, nil
	}
	spec := &genesis.GenesisSpec{
		Ledger: c.Ledger,
		Tokens: append([]genesis.TokenSpec(nil), c.Tokens...),
		Alloc:  c.Alloc,
		Roles:  c.Roles,
	}
	if c.ChainID != 0 {
		chainID := c.ChainID
		spec.ChainID = &chainID
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
