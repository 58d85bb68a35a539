// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"r2s/native/campaign"
)

type GenesisSpec struct {
	GenesisTime string                       `json:"genesisTime" yaml:"genesisTime"`
	ChainID     *uint64                      `json:"chainId,omitempty" yaml:"chainId"`
	Ledger      LedgerSpec                   `json:"ledger" yaml:"ledger"`
	Tokens      []TokenSpec                  `json:"tokens" yaml:"tokens"`
	Alloc       map[string]map[string]string `json:"alloc,omitempty" yaml:"alloc"` // addr -> token symbol -> amount
	Roles       map[string][]string          `json:"roles,omitempty" yaml:"roles"` // role -> []addr

	genesisTimestamp time.Time
	chainIDValue     uint64
	hasChainID       bool
}

// LedgerSpec configures the campaign ledger at initialization. Zero fee values
// keep the ledger defaults.
type LedgerSpec struct {
	Admin                string  `json:"admin" toml:"Admin" yaml:"admin"`
	FeeCollector         string  `json:"feeCollector" toml:"FeeCollector" yaml:"feeCollector"`
	Treasury             string  `json:"treasury" toml:"Treasury" yaml:"treasury"`
	PlatformFeeBps       *uint32 `json:"platformFeeBps,omitempty" toml:"PlatformFeeBps" yaml:"platformFeeBps"`
	MerchantFeeBps       *uint32 `json:"merchantFeeBps,omitempty" toml:"MerchantFeeBps" yaml:"merchantFeeBps"`
	EarlyWithdrawPenalty *uint32 `json:"earlyWithdrawPenaltyBps,omitempty" toml:"EarlyWithdrawPenaltyBps" yaml:"earlyWithdrawPenaltyBps"`
	MaxDiscountBps       *uint32 `json:"maxDiscountBps,omitempty" toml:"MaxDiscountBps" yaml:"maxDiscountBps"`
}

type TokenSpec struct {
	Address   string `json:"address" toml:"Address" yaml:"address"`
	Symbol    string `json:"symbol" toml:"Symbol" yaml:"symbol"`
	Name      string `json:"name" toml:"Name" yaml:"name"`
	Decimals  uint8  `json:"decimals" toml:"Decimals" yaml:"decimals"`
	Minter    string `json:"minter,omitempty" toml:"Minter" yaml:"minter"`
	Whitelist bool   `json:"whitelist" toml:"Whitelist" yaml:"whitelist"`
}

// LoadGenesisSpec reads a JSON genesis file, or YAML when the extension is
// .yaml or .yml.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }
func (s *GenesisSpec) ChainIDValue() (uint64, bool) {
	if s.hasChainID {
		return s.chainIDValue, true
	}
	return 0, false
}

// Validate checks the spec and caches the parsed timestamp and chain id.
func (s *GenesisSpec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if strings.TrimSpace(s.GenesisTime) != "" {
		parsedTime, err := parseGenesisTime(s.GenesisTime)
		if err != nil {
			return err
		}
		s.genesisTimestamp = parsedTime
	}

	s.hasChainID = false
	s.chainIDValue = 0
	if s.ChainID != nil {
		s.hasChainID = true
		s.chainIDValue = *s.ChainID
	}

	if err := s.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	tokenSymbols := make(map[string]struct{}, len(s.Tokens))
	tokenAddrs := make(map[common.Address]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		if err := s.Tokens[i].Validate(); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		key := strings.ToUpper(strings.TrimSpace(s.Tokens[i].Symbol))
		if _, exists := tokenSymbols[key]; exists {
			return fmt.Errorf("tokens[%d]: duplicate symbol %q", i, s.Tokens[i].Symbol)
		}
		tokenSymbols[key] = struct{}{}
		addr := common.HexToAddress(s.Tokens[i].Address)
		if _, exists := tokenAddrs[addr]; exists {
			return fmt.Errorf("tokens[%d]: duplicate address %s", i, addr.Hex())
		}
		tokenAddrs[addr] = struct{}{}
	}

	accounts := make([]string, 0, len(s.Alloc))
	for account := range s.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		if _, err := ParseAddress(account); err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		symbols := make([]string, 0, len(s.Alloc[account]))
		for symbol := range s.Alloc[account] {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		seen := make(map[string]struct{}, len(symbols))
		for _, symbol := range symbols {
			amount := s.Alloc[account][symbol]
			if strings.TrimSpace(amount) == "" {
				return fmt.Errorf("alloc[%q][%q]: amount must be provided", account, symbol)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
			symKey := strings.ToUpper(strings.TrimSpace(symbol))
			if _, exists := tokenSymbols[symKey]; !exists {
				return fmt.Errorf("alloc[%q][%q]: undefined token", account, symbol)
			}
			if _, dup := seen[symKey]; dup {
				return fmt.Errorf("alloc[%q]: duplicate token %q", account, symbol)
			}
			seen[symKey] = struct{}{}
		}
	}

	roleNames := make([]string, 0, len(s.Roles))
	for role := range s.Roles {
		roleNames = append(roleNames, role)
	}
	sort.Strings(roleNames)
	for _, role := range roleNames {
		if _, err := campaign.ParseRole(role); err != nil {
			return fmt.Errorf("roles[%q]: %w", role, err)
		}
		for i, account := range s.Roles[role] {
			if _, err := ParseAddress(account); err != nil {
				return fmt.Errorf("roles[%q][%d]: %w", role, i, err)
			}
		}
	}
	return nil
}

// Fees resolves the configured fees against the ledger defaults.
func (l LedgerSpec) Fees() (platform, merchant, penalty, maxDiscount uint32) {
	platform, merchant = campaign.DefaultPlatformFee, campaign.DefaultMerchantFee
	penalty, maxDiscount = campaign.DefaultEarlyWithdrawPenalty, campaign.DefaultMaxDiscountRate
	if l.PlatformFeeBps != nil {
		platform = *l.PlatformFeeBps
	}
	if l.MerchantFeeBps != nil {
		merchant = *l.MerchantFeeBps
	}
	if l.EarlyWithdrawPenalty != nil {
		penalty = *l.EarlyWithdrawPenalty
	}
	if l.MaxDiscountBps != nil {
		maxDiscount = *l.MaxDiscountBps
	}
	return platform, merchant, penalty, maxDiscount
}

func (l LedgerSpec) Validate() error {
	fields := []struct{ name, value string }{
		{"admin", l.Admin},
		{"feeCollector", l.FeeCollector},
		{"treasury", l.Treasury},
	}
	for _, field := range fields {
		addr, err := ParseAddress(field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		if addr == (common.Address{}) {
			return fmt.Errorf("%s must not be the zero address", field.name)
		}
	}
	return campaign.ValidateFees(l.Fees())
}

func (t *TokenSpec) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol must be provided")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name must be provided")
	}
	if t.Decimals > 18 {
		return fmt.Errorf("decimals must be 18 or fewer")
	}
	addr, err := ParseAddress(t.Address)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("address must not be the zero address")
	}
	if strings.TrimSpace(t.Minter) != "" {
		if _, err := ParseAddress(t.Minter); err != nil {
			return fmt.Errorf("minter: %w", err)
		}
	}
	return nil
}

// ParseAddress decodes a 0x-prefixed hex account address.
func ParseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
