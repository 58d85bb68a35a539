package config

import (
	"fmt"
	"strings"

	"r2s/core/genesis"
)

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {},
}

func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config must not be nil")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("ChainID must be non-zero")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must be provided")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be provided")
	}
	if _, ok := validLogLevels[strings.ToLower(strings.TrimSpace(c.LogLevel))]; !ok {
		return fmt.Errorf("LogLevel %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.RPC.RateLimitPerMinute > 0 && c.RPC.RateLimitBurst <= 0 {
		return fmt.Errorf("rpc: RateLimitBurst must be positive when rate limiting is enabled")
	}
	if c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: MaxBodyBytes must not be negative")
	}
	if strings.TrimSpace(c.Deployer) != "" {
		if _, err := genesis.ParseAddress(c.Deployer); err != nil {
			return fmt.Errorf("Deployer: %w", err)
		}
	}
	if c.RPC.JWT.Enable && strings.TrimSpace(c.RPC.JWT.HSSecretEnv) == "" {
		return fmt.Errorf("rpc.jwt: HSSecretEnv must be provided when JWT authentication is enabled")
	}
	if c.GenesisFile != "" {
		if strings.TrimSpace(c.Ledger.Admin) != "" || len(c.Tokens) > 0 || len(c.Alloc) > 0 || len(c.Roles) > 0 {
			return fmt.Errorf("GenesisFile cannot be combined with inline ledger, tokens, alloc or roles")
		}
		return nil
	}
	if strings.TrimSpace(c.Ledger.Admin) == "" {
		if len(c.Tokens) > 0 || len(c.Alloc) > 0 || len(c.Roles) > 0 {
			return fmt.Errorf("ledger: Admin must be provided with tokens, alloc or roles")
		}
		return nil
	}
	if _, err := c.GenesisSpec(); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	return nil
}
