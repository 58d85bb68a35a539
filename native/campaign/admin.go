package campaign

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Initialize configures the ledger exactly once. admin receives the default
// admin, admin, operator and upgrader roles.
func (e *Engine) Initialize(admin, feeCollector, treasury common.Address) error {
	return e.execute(func() error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if cfg.Initialized {
			return ErrAlreadyInitialized
		}
		if admin == (common.Address{}) || feeCollector == (common.Address{}) || treasury == (common.Address{}) {
			return ErrZeroAddress
		}
		*cfg = Config{
			Initialized:          true,
			PlatformFee:          DefaultPlatformFee,
			MerchantFee:          DefaultMerchantFee,
			EarlyWithdrawPenalty: DefaultEarlyWithdrawPenalty,
			MaxDiscountRate:      DefaultMaxDiscountRate,
			FeeCollector:         feeCollector,
			Treasury:             treasury,
			Version:              InitialVersion,
		}
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		for _, role := range []common.Hash{DefaultAdminRole, AdminRole, OperatorRole, UpgraderRole} {
			if err := e.grantRole(role, admin, admin); err != nil {
				return err
			}
		}
		if err := e.setRoleAdmin(MerchantRole, AdminRole); err != nil {
			return err
		}
		if err := e.setRoleAdmin(OperatorRole, AdminRole); err != nil {
			return err
		}
		e.queue(newInitializedEvent(cfg.Version, admin))
		return nil
	})
}

// adminOp runs fn for a caller holding the admin role.
func (e *Engine) adminOp(caller common.Address, fn func(cfg *Config) error) error {
	return e.execute(func() error {
		cfg, err := e.requireInitialized()
		if err != nil {
			return err
		}
		if err := e.requireRole(AdminRole, caller); err != nil {
			return err
		}
		return fn(cfg)
	})
}

// Pause blocks every money-moving operation.
func (e *Engine) Pause(caller common.Address) error {
	return e.adminOp(caller, func(cfg *Config) error {
		if cfg.Paused {
			return ErrPaused
		}
		cfg.Paused = true
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.queue(newPauseEvent(EventTypePaused, caller))
		return nil
	})
}

// Unpause lifts a previous Pause.
func (e *Engine) Unpause(caller common.Address) error {
	return e.adminOp(caller, func(cfg *Config) error {
		if !cfg.Paused {
			return ErrNotPaused
		}
		cfg.Paused = false
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.queue(newPauseEvent(EventTypeUnpaused, caller))
		return nil
	})
}

// WhitelistToken allows or disallows token as campaign currency.
func (e *Engine) WhitelistToken(caller, token common.Address, status bool) error {
	return e.adminOp(caller, func(*Config) error {
		if token == (common.Address{}) {
			return ErrZeroAddress
		}
		if err := e.state.KVPut(whitelistKey(token), status); err != nil {
			return err
		}
		e.queue(newListEvent(EventTypeTokenWhitelisted, "token", token, status))
		return nil
	})
}

// BlacklistAccount bars or readmits account as a participant.
func (e *Engine) BlacklistAccount(caller, account common.Address, status bool) error {
	return e.adminOp(caller, func(*Config) error {
		if account == (common.Address{}) {
			return ErrZeroAddress
		}
		if err := e.state.KVPut(blacklistKey(account), status); err != nil {
			return err
		}
		e.queue(newListEvent(EventTypeAccountBlacklisted, "account", account, status))
		return nil
	})
}

// validateFees enforces the per-fee ceilings and keeps settlement solvent for
// any discount a campaign may be created with.
func validateFees(platformFee, merchantFee, penalty, maxDiscount uint32) error {
	if platformFee > MaxPlatformFee {
		return fmt.Errorf("%w: platform fee %d > %d", ErrFeeTooHigh, platformFee, MaxPlatformFee)
	}
	if merchantFee > MaxMerchantFee {
		return fmt.Errorf("%w: merchant fee %d > %d", ErrFeeTooHigh, merchantFee, MaxMerchantFee)
	}
	if penalty > MaxEarlyWithdrawPenalty {
		return fmt.Errorf("%w: penalty %d > %d", ErrFeeTooHigh, penalty, MaxEarlyWithdrawPenalty)
	}
	if maxDiscount > BasisPoints {
		return fmt.Errorf("%w: max discount %d > %d", ErrDiscountTooHigh, maxDiscount, BasisPoints)
	}
	if uint64(platformFee)+uint64(merchantFee)+uint64(maxDiscount) > BasisPoints {
		return fmt.Errorf("%w: fees plus max discount exceed %d", ErrFeeTooHigh, BasisPoints)
	}
	return nil
}

// ValidateFees checks a fee configuration without applying it.
func ValidateFees(platformFee, merchantFee, penalty, maxDiscount uint32) error {
	return validateFees(platformFee, merchantFee, penalty, maxDiscount)
}

// UpdateFees replaces the platform fee, merchant fee and early withdrawal
// penalty.
func (e *Engine) UpdateFees(caller common.Address, platformFee, merchantFee, penalty uint32) error {
	return e.adminOp(caller, func(cfg *Config) error {
		if err := validateFees(platformFee, merchantFee, penalty, cfg.MaxDiscountRate); err != nil {
			return err
		}
		cfg.PlatformFee = platformFee
		cfg.MerchantFee = merchantFee
		cfg.EarlyWithdrawPenalty = penalty
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.queue(newFeesUpdatedEvent(cfg))
		return nil
	})
}

// UpdateMaxDiscountRate changes the ceiling applied to new campaigns.
func (e *Engine) UpdateMaxDiscountRate(caller common.Address, maxDiscount uint32) error {
	return e.adminOp(caller, func(cfg *Config) error {
		if err := validateFees(cfg.PlatformFee, cfg.MerchantFee, cfg.EarlyWithdrawPenalty, maxDiscount); err != nil {
			return err
		}
		cfg.MaxDiscountRate = maxDiscount
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.queue(newFeesUpdatedEvent(cfg))
		return nil
	})
}

// UpdateFeeAddresses replaces the fee collector and treasury.
func (e *Engine) UpdateFeeAddresses(caller, feeCollector, treasury common.Address) error {
	return e.adminOp(caller, func(cfg *Config) error {
		if feeCollector == (common.Address{}) || treasury == (common.Address{}) {
			return ErrZeroAddress
		}
		cfg.FeeCollector = feeCollector
		cfg.Treasury = treasury
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.queue(newFeeAddressesUpdatedEvent(cfg))
		return nil
	})
}

// UpdateCampaignStatus applies an operator status override. Only the
// transitions accepted by CanTransition are allowed.
func (e *Engine) UpdateCampaignStatus(caller common.Address, campaignID uint64, status CampaignStatus) error {
	return e.execute(func() error {
		if _, err := e.requireInitialized(); err != nil {
			return err
		}
		if err := e.requireRole(OperatorRole, caller); err != nil {
			return err
		}
		if !status.Valid() {
			return ErrInvalidStatus
		}
		c, err := e.loadCampaign(campaignID)
		if err != nil {
			return err
		}
		if !CanTransition(c.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, status)
		}
		c.Status = status
		if err := e.storeCampaign(c); err != nil {
			return err
		}
		e.queue(newCampaignUpdatedEvent(c.ID, status))
		return nil
	})
}

// VerifyCampaign marks a campaign as verified. Verifying twice is a no-op.
func (e *Engine) VerifyCampaign(caller common.Address, campaignID uint64) error {
	return e.execute(func() error {
		if _, err := e.requireInitialized(); err != nil {
			return err
		}
		if err := e.requireRole(OperatorRole, caller); err != nil {
			return err
		}
		c, err := e.loadCampaign(campaignID)
		if err != nil {
			return err
		}
		if c.IsVerified {
			return nil
		}
		c.IsVerified = true
		if err := e.storeCampaign(c); err != nil {
			return err
		}
		e.queue(newCampaignVerifiedEvent(c.ID, caller))
		return nil
	})
}

// EmergencyWithdraw moves amount of token out of escrow to the calling admin
// without touching campaign accounting. It stays available while paused.
func (e *Engine) EmergencyWithdraw(caller, token common.Address, amount *big.Int) error {
	return e.adminOp(caller, func(*Config) error {
		if !validAmount(amount) {
			return ErrInvalidAmount
		}
		tok, err := e.token(token)
		if err != nil {
			return err
		}
		if err := tok.Transfer(EscrowAddress, caller, amount); err != nil {
			return fmt.Errorf("campaign: emergency withdraw: %w", err)
		}
		e.queue(newEmergencyWithdrawEvent(caller, token, amount))
		return nil
	})
}

// UpgradeTo records a new implementation version.
func (e *Engine) UpgradeTo(caller common.Address, version string) error {
	return e.execute(func() error {
		cfg, err := e.requireInitialized()
		if err != nil {
			return err
		}
		if err := e.requireRole(UpgraderRole, caller); err != nil {
			return err
		}
		version = strings.TrimSpace(version)
		if version == "" || version == cfg.Version {
			return ErrInvalidVersion
		}
		cfg.Version = version
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.queue(newUpgradedEvent(version, caller))
		return nil
	})
}
