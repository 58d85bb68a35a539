package campaign

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GetCampaign returns a copy of the campaign record.
func (e *Engine) GetCampaign(id uint64) (*Campaign, error) {
	return e.loadCampaign(id)
}

// GetParticipation returns a copy of the participation record.
func (e *Engine) GetParticipation(id uint64) (*Participation, error) {
	return e.loadParticipation(id)
}

// GetCampaignParticipations lists the participation ids of a campaign in
// creation order.
func (e *Engine) GetCampaignParticipations(campaignID uint64) ([]uint64, error) {
	if _, err := e.loadCampaign(campaignID); err != nil {
		return nil, err
	}
	return e.loadIDs(campaignParticipationsKey(campaignID))
}

// GetUserParticipations lists every participation id created for user.
func (e *Engine) GetUserParticipations(user common.Address) ([]uint64, error) {
	return e.loadIDs(userParticipationsKey(user))
}

// GetMerchantCampaigns lists the campaign ids created by merchant.
func (e *Engine) GetMerchantCampaigns(merchant common.Address) ([]uint64, error) {
	return e.loadIDs(merchantCampaignsKey(merchant))
}

// GetCampaignStats summarises a campaign. CompletionRate is the whole
// percentage of the target reached and may exceed 100.
func (e *Engine) GetCampaignStats(campaignID uint64) (*Stats, error) {
	c, err := e.loadCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		TotalParticipants: c.TotalParticipants,
		TotalDeposited:    cloneBigInt(c.CurrentAmount),
		AverageDeposit:    big.NewInt(0),
	}
	if c.TotalParticipants > 0 {
		stats.AverageDeposit = new(big.Int).Quo(c.CurrentAmount, new(big.Int).SetUint64(c.TotalParticipants))
	}
	if c.TargetAmount.Sign() > 0 {
		rate := new(big.Int).Mul(c.CurrentAmount, big.NewInt(100))
		rate.Quo(rate, c.TargetAmount)
		if rate.IsUint64() {
			stats.CompletionRate = rate.Uint64()
		}
	}
	return stats, nil
}

// IsCampaignActive reports whether the campaign accepts deposits right now.
func (e *Engine) IsCampaignActive(campaignID uint64) (bool, error) {
	c, err := e.loadCampaign(campaignID)
	if err != nil {
		return false, err
	}
	now := e.now()
	return c.Status == CampaignActive && now >= c.StartTime && now < c.EndTime, nil
}

// UserCampaignDeposit returns the user's outstanding deposit total in a
// campaign. Refunded deposits are not counted.
func (e *Engine) UserCampaignDeposit(campaignID uint64, user common.Address) (*big.Int, error) {
	return e.loadUserDeposit(campaignID, user)
}

// Fees returns the current fee configuration.
func (e *Engine) Fees() (*Fees, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return &Fees{
		PlatformFee:          cfg.PlatformFee,
		MerchantFee:          cfg.MerchantFee,
		EarlyWithdrawPenalty: cfg.EarlyWithdrawPenalty,
		MaxDiscountRate:      cfg.MaxDiscountRate,
		FeeCollector:         cfg.FeeCollector,
		Treasury:             cfg.Treasury,
	}, nil
}

// Config returns a copy of the global configuration.
func (e *Engine) Config() (*Config, error) {
	return e.loadConfig()
}

// Paused reports whether money-moving operations are blocked.
func (e *Engine) Paused() (bool, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return false, err
	}
	return cfg.Paused, nil
}

// IsWhitelisted reports whether token may be used for new campaigns.
func (e *Engine) IsWhitelisted(token common.Address) (bool, error) {
	return e.loadFlag(whitelistKey(token))
}

// IsBlacklisted reports whether account is barred from participating.
func (e *Engine) IsBlacklisted(account common.Address) (bool, error) {
	return e.loadFlag(blacklistKey(account))
}

// NextCampaignID returns the id the next campaign will receive.
func (e *Engine) NextCampaignID() (uint64, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return 0, err
	}
	return cfg.NextCampaignID, nil
}

// NextParticipationID returns the id the next participation will receive.
func (e *Engine) NextParticipationID() (uint64, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return 0, err
	}
	return cfg.NextParticipationID, nil
}

// Version returns the recorded implementation version.
func (e *Engine) Version() (string, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Version, nil
}

// FeeCollector returns the account receiving settlement fees.
func (e *Engine) FeeCollector() (common.Address, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return common.Address{}, err
	}
	return cfg.FeeCollector, nil
}

// Treasury returns the account receiving early withdrawal penalties.
func (e *Engine) Treasury() (common.Address, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return common.Address{}, err
	}
	return cfg.Treasury, nil
}
