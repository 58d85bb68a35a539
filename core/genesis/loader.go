// core/genesis/loader.go
package genesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"r2s/native/campaign"
	"r2s/native/token"
)

// RegisterTokens stores the genesis tokens that the ledger does not know yet
// and checks the rest against their stored definitions. It reports how many
// tokens were added.
func RegisterTokens(spec *GenesisSpec, registry *token.Registry) (int, error) {
	if spec == nil {
		return 0, fmt.Errorf("genesis spec must not be nil")
	}
	if registry == nil {
		return 0, fmt.Errorf("token registry must not be nil")
	}
	added := 0
	for i := range spec.Tokens {
		t := &spec.Tokens[i]
		meta := token.Metadata{
			Address:  common.HexToAddress(t.Address),
			Name:     t.Name,
			Symbol:   strings.TrimSpace(t.Symbol),
			Decimals: t.Decimals,
		}
		if strings.TrimSpace(t.Minter) != "" {
			meta.Minter = common.HexToAddress(t.Minter)
		}
		_, created, err := registry.Ensure(meta)
		if err != nil {
			return added, fmt.Errorf("register token %s: %w", t.Symbol, err)
		}
		if created {
			added++
		}
	}
	return added, nil
}

// Apply initializes the campaign ledger and seeds balances. The caller owns the
// state transaction and must commit or discard it.
func Apply(spec *GenesisSpec, ledger *campaign.Engine, registry *token.Registry) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if ledger == nil || registry == nil {
		return fmt.Errorf("ledger and token registry must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	admin := common.HexToAddress(spec.Ledger.Admin)
	if err := ledger.Initialize(admin, common.HexToAddress(spec.Ledger.FeeCollector), common.HexToAddress(spec.Ledger.Treasury)); err != nil {
		return fmt.Errorf("initialize ledger: %w", err)
	}
	if err := applyFees(spec.Ledger, ledger, admin); err != nil {
		return err
	}

	// 1) Tokens: whitelist in declaration order.
	symbols := make(map[string]common.Address, len(spec.Tokens))
	for _, t := range spec.Tokens {
		addr := common.HexToAddress(t.Address)
		symbols[strings.ToUpper(strings.TrimSpace(t.Symbol))] = addr
		if !t.Whitelist {
			continue
		}
		if err := ledger.WhitelistToken(admin, addr, true); err != nil {
			return fmt.Errorf("whitelist %s: %w", t.Symbol, err)
		}
	}

	// 2) Allocations (sorted by account, then symbol).
	accounts := make([]string, 0, len(spec.Alloc))
	for account := range spec.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		holder := common.HexToAddress(account)
		tokenAlloc := spec.Alloc[account]
		syms := make([]string, 0, len(tokenAlloc))
		for symbol := range tokenAlloc {
			syms = append(syms, symbol)
		}
		sort.Strings(syms)
		for _, symbol := range syms {
			amount, err := parseAmountString(tokenAlloc[symbol])
			if err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
			if amount.Sign() == 0 {
				continue
			}
			engine, err := registry.MustGet(symbols[strings.ToUpper(strings.TrimSpace(symbol))])
			if err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
			if err := engine.MintGenesis(holder, amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
		}
	}

	// 3) Roles (sorted).
	roleNames := make([]string, 0, len(spec.Roles))
	for role := range spec.Roles {
		roleNames = append(roleNames, role)
	}
	sort.Strings(roleNames)
	for _, name := range roleNames {
		role, err := campaign.ParseRole(name)
		if err != nil {
			return err
		}
		for _, account := range spec.Roles[name] {
			if err := ledger.GrantRole(admin, role, common.HexToAddress(account)); err != nil {
				return fmt.Errorf("grant %s to %s: %w", campaign.RoleName(role), account, err)
			}
		}
	}
	return nil
}

// applyFees moves from the defaults to the configured fees in an order that
// keeps every intermediate configuration valid.
func applyFees(spec LedgerSpec, ledger *campaign.Engine, admin common.Address) error {
	platform, merchant, penalty, maxDiscount := spec.Fees()
	current, err := ledger.Fees()
	if err != nil {
		return err
	}
	feesChanged := platform != current.PlatformFee || merchant != current.MerchantFee || penalty != current.EarlyWithdrawPenalty
	discountChanged := maxDiscount != current.MaxDiscountRate

	updateFees := func() error {
		if !feesChanged {
			return nil
		}
		if err := ledger.UpdateFees(admin, platform, merchant, penalty); err != nil {
			return fmt.Errorf("update fees: %w", err)
		}
		return nil
	}
	updateDiscount := func() error {
		if !discountChanged {
			return nil
		}
		if err := ledger.UpdateMaxDiscountRate(admin, maxDiscount); err != nil {
			return fmt.Errorf("update max discount: %w", err)
		}
		return nil
	}
	if maxDiscount <= current.MaxDiscountRate {
		if err := updateDiscount(); err != nil {
			return err
		}
		return updateFees()
	}
	if err := updateFees(); err != nil {
		return err
	}
	return updateDiscount()
}
