package campaign

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
)

const (
	EventTypeInitialized          = "campaign.initialized"
	EventTypeCampaignCreated      = "campaign.created"
	EventTypeCampaignUpdated      = "campaign.updated"
	EventTypeCampaignVerified     = "campaign.verified"
	EventTypeParticipationCreated = "campaign.participation.created"
	EventTypeParticipationSettled = "campaign.participation.settled"
	EventTypeRefundProcessed      = "campaign.refund.processed"
	EventTypePenaltyCollected     = "campaign.penalty.collected"
	EventTypeFeeCollected         = "campaign.fee.collected"
	EventTypeEmergencyWithdraw    = "campaign.emergency.withdraw"
	EventTypePaused               = "campaign.paused"
	EventTypeUnpaused             = "campaign.unpaused"
	EventTypeTokenWhitelisted     = "campaign.token.whitelisted"
	EventTypeAccountBlacklisted   = "campaign.account.blacklisted"
	EventTypeFeesUpdated          = "campaign.fees.updated"
	EventTypeFeeAddressesUpdated  = "campaign.fee_addresses.updated"
	EventTypeRoleGranted          = "campaign.role.granted"
	EventTypeRoleRevoked          = "campaign.role.revoked"
	EventTypeRoleAdminChanged     = "campaign.role.admin_changed"
	EventTypeUpgraded             = "campaign.upgraded"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func amountAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newEvent(eventType string, attrs map[string]string) *types.Event {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newInitializedEvent(version string, admin common.Address) *types.Event {
	return newEvent(EventTypeInitialized, map[string]string{
		"version": version,
		"admin":   admin.Hex(),
	})
}

func newCampaignCreatedEvent(c *Campaign) *types.Event {
	return newEvent(EventTypeCampaignCreated, map[string]string{
		"campaignId":   u64(c.ID),
		"merchant":     c.Merchant.Hex(),
		"title":        c.Title,
		"token":        c.Token.Hex(),
		"targetAmount": amountAttr(c.TargetAmount),
		"discountRate": strconv.FormatUint(uint64(c.DiscountRate), 10),
		"startTime":    u64(c.StartTime),
		"endTime":      u64(c.EndTime),
	})
}

func newCampaignUpdatedEvent(id uint64, status CampaignStatus) *types.Event {
	return newEvent(EventTypeCampaignUpdated, map[string]string{
		"campaignId": u64(id),
		"status":     strconv.FormatUint(uint64(status), 10),
		"statusName": status.String(),
	})
}

func newCampaignVerifiedEvent(id uint64, operator common.Address) *types.Event {
	return newEvent(EventTypeCampaignVerified, map[string]string{
		"campaignId": u64(id),
		"operator":   operator.Hex(),
	})
}

func newParticipationCreatedEvent(p *Participation) *types.Event {
	return newEvent(EventTypeParticipationCreated, map[string]string{
		"participationId":  u64(p.ID),
		"campaignId":       u64(p.CampaignID),
		"participant":      p.Participant.Hex(),
		"amount":           amountAttr(p.DepositAmount),
		"expectedDiscount": amountAttr(p.ExpectedDiscount),
	})
}

func newParticipationSettledEvent(p *Participation) *types.Event {
	return newEvent(EventTypeParticipationSettled, map[string]string{
		"participationId":  u64(p.ID),
		"campaignId":       u64(p.CampaignID),
		"participant":      p.Participant.Hex(),
		"settlementAmount": amountAttr(p.SettlementAmount),
		"discount":         amountAttr(p.ActualDiscount),
	})
}

func newRefundProcessedEvent(p *Participation, refund *big.Int) *types.Event {
	return newEvent(EventTypeRefundProcessed, map[string]string{
		"participationId": u64(p.ID),
		"campaignId":      u64(p.CampaignID),
		"participant":     p.Participant.Hex(),
		"refundAmount":    amountAttr(refund),
	})
}

func newPenaltyCollectedEvent(p *Participation, penalty *big.Int, treasury common.Address) *types.Event {
	return newEvent(EventTypePenaltyCollected, map[string]string{
		"participationId": u64(p.ID),
		"campaignId":      u64(p.CampaignID),
		"amount":          amountAttr(penalty),
		"treasury":        treasury.Hex(),
	})
}

func newFeeCollectedEvent(id uint64, platformFee, merchantFee *big.Int, collector common.Address) *types.Event {
	return newEvent(EventTypeFeeCollected, map[string]string{
		"campaignId":   u64(id),
		"platformFee":  amountAttr(platformFee),
		"merchantFee":  amountAttr(merchantFee),
		"feeCollector": collector.Hex(),
	})
}

func newEmergencyWithdrawEvent(user, token common.Address, amt *big.Int) *types.Event {
	return newEvent(EventTypeEmergencyWithdraw, map[string]string{
		"user":   user.Hex(),
		"token":  token.Hex(),
		"amount": amountAttr(amt),
	})
}

func newPauseEvent(eventType string, account common.Address) *types.Event {
	return newEvent(eventType, map[string]string{"account": account.Hex()})
}

func newListEvent(eventType, field string, addr common.Address, status bool) *types.Event {
	return newEvent(eventType, map[string]string{
		field:    addr.Hex(),
		"status": strconv.FormatBool(status),
	})
}

func newFeesUpdatedEvent(cfg *Config) *types.Event {
	return newEvent(EventTypeFeesUpdated, map[string]string{
		"platformFee":          strconv.FormatUint(uint64(cfg.PlatformFee), 10),
		"merchantFee":          strconv.FormatUint(uint64(cfg.MerchantFee), 10),
		"earlyWithdrawPenalty": strconv.FormatUint(uint64(cfg.EarlyWithdrawPenalty), 10),
		"maxDiscountRate":      strconv.FormatUint(uint64(cfg.MaxDiscountRate), 10),
	})
}

func newFeeAddressesUpdatedEvent(cfg *Config) *types.Event {
	return newEvent(EventTypeFeeAddressesUpdated, map[string]string{
		"feeCollector": cfg.FeeCollector.Hex(),
		"treasury":     cfg.Treasury.Hex(),
	})
}

func newRoleEvent(eventType string, role common.Hash, account, sender common.Address) *types.Event {
	return newEvent(eventType, map[string]string{
		"role":     role.Hex(),
		"roleName": RoleName(role),
		"account":  account.Hex(),
		"sender":   sender.Hex(),
	})
}

func newRoleAdminChangedEvent(role, previous, next common.Hash) *types.Event {
	return newEvent(EventTypeRoleAdminChanged, map[string]string{
		"role":              role.Hex(),
		"previousAdminRole": previous.Hex(),
		"newAdminRole":      next.Hex(),
	})
}

func newUpgradedEvent(version string, upgrader common.Address) *types.Event {
	return newEvent(EventTypeUpgraded, map[string]string{
		"version":  version,
		"upgrader": upgrader.Hex(),
	})
}
