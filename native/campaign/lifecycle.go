package campaign

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CreateCampaign records a new Active campaign for the calling merchant and
// returns its id.
func (e *Engine) CreateCampaign(caller common.Address, params CreateParams) (uint64, error) {
	var id uint64
	err := e.execute(func() error {
		cfg, err := e.requireInitialized()
		if err != nil {
			return err
		}
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		if err := e.requireRole(MerchantRole, caller); err != nil {
			return err
		}
		if err := e.validateCreate(cfg, params); err != nil {
			return err
		}
		start := e.now()
		if params.Duration > math.MaxUint64-start || params.SettlementPeriod > math.MaxUint64-start-params.Duration {
			return ErrInvalidDuration
		}
		c := &Campaign{
			ID:             cfg.NextCampaignID,
			Title:          strings.TrimSpace(params.Title),
			Description:    params.Description,
			ImageURL:       params.ImageURL,
			Merchant:       caller,
			Token:          params.Token,
			TargetAmount:   cloneBigInt(params.TargetAmount),
			CurrentAmount:  big.NewInt(0),
			MinDeposit:     cloneBigInt(params.MinDeposit),
			MaxDeposit:     cloneBigInt(params.MaxDeposit),
			TotalSettled:   big.NewInt(0),
			DiscountRate:   params.DiscountRate,
			StartTime:      start,
			EndTime:        start + params.Duration,
			SettlementDate: start + params.Duration + params.SettlementPeriod,
			Status:         CampaignActive,
		}
		cfg.NextCampaignID++
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		if err := e.storeCampaign(c); err != nil {
			return err
		}
		if err := e.state.KVAppendUint64(merchantCampaignsKey(caller), c.ID); err != nil {
			return err
		}
		id = c.ID
		e.queue(newCampaignCreatedEvent(c))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (e *Engine) validateCreate(cfg *Config, params CreateParams) error {
	whitelisted, err := e.loadFlag(whitelistKey(params.Token))
	if err != nil {
		return err
	}
	if !whitelisted {
		return ErrTokenNotWhitelisted
	}
	if params.DiscountRate > cfg.MaxDiscountRate {
		return fmt.Errorf("%w: %d > %d", ErrDiscountTooHigh, params.DiscountRate, cfg.MaxDiscountRate)
	}
	if !validAmount(params.MinDeposit) || !validAmount(params.MaxDeposit) || params.MinDeposit.Cmp(params.MaxDeposit) > 0 {
		return ErrInvalidDepositRange
	}
	if !validAmount(params.TargetAmount) {
		return ErrInvalidTarget
	}
	if params.Duration == 0 {
		return ErrInvalidDuration
	}
	if params.SettlementPeriod == 0 {
		return ErrInvalidSettlementPeriod
	}
	if strings.TrimSpace(params.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Participate deposits amount from the caller into the campaign and returns the
// new participation id. The caller must have approved EscrowAddress for at
// least amount on the campaign token.
func (e *Engine) Participate(caller common.Address, campaignID uint64, amount *big.Int) (uint64, error) {
	var id uint64
	err := e.execute(func() error {
		cfg, err := e.requireInitialized()
		if err != nil {
			return err
		}
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		c, err := e.loadCampaign(campaignID)
		if err != nil {
			return err
		}
		id, err = e.join(cfg, c, caller, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// BatchParticipate records one deposit per (participant, amount) pair, pulling
// each amount from the participant's own allowance. The batch is applied
// all-or-nothing.
func (e *Engine) BatchParticipate(caller common.Address, campaignID uint64, participants []common.Address, amounts []*big.Int) ([]uint64, error) {
	var ids []uint64
	err := e.execute(func() error {
		cfg, err := e.requireInitialized()
		if err != nil {
			return err
		}
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		if err := e.requireAnyRole(caller, OperatorRole, AdminRole); err != nil {
			return err
		}
		if len(participants) != len(amounts) {
			return ErrBatchLengthMismatch
		}
		if len(participants) == 0 {
			return ErrEmptyBatch
		}
		c, err := e.loadCampaign(campaignID)
		if err != nil {
			return err
		}
		ids = make([]uint64, 0, len(participants))
		for i, participant := range participants {
			id, err := e.join(cfg, c, participant, amounts[i])
			if err != nil {
				return fmt.Errorf("batch entry %d: %w", i, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// join applies a single deposit. cfg and c are updated in place and persisted
// before the token is pulled.
func (e *Engine) join(cfg *Config, c *Campaign, participant common.Address, amount *big.Int) (uint64, error) {
	if participant == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if err := e.requireNotBlacklisted(participant); err != nil {
		return 0, err
	}
	if c.Status != CampaignActive {
		return 0, ErrCampaignNotActive
	}
	now := e.now()
	if now < c.StartTime {
		return 0, ErrCampaignNotStarted
	}
	if now >= c.EndTime {
		return 0, ErrCampaignEnded
	}
	if !validAmount(amount) {
		return 0, ErrInvalidAmount
	}
	if amount.Cmp(c.MinDeposit) < 0 {
		return 0, ErrBelowMinimum
	}
	if amount.Cmp(c.MaxDeposit) > 0 {
		return 0, ErrAboveMaximum
	}
	tok, err := e.token(c.Token)
	if err != nil {
		return 0, err
	}
	expected, err := applyBps(amount, c.DiscountRate)
	if err != nil {
		return 0, err
	}

	p := &Participation{
		ID:               cfg.NextParticipationID,
		Participant:      participant,
		CampaignID:       c.ID,
		DepositAmount:    new(big.Int).Set(amount),
		DepositTime:      now,
		ExpectedDiscount: expected,
		ActualDiscount:   big.NewInt(0),
		SettlementAmount: big.NewInt(0),
		Status:           ParticipationActive,
	}
	cfg.NextParticipationID++
	c.CurrentAmount = new(big.Int).Add(c.CurrentAmount, amount)
	c.TotalParticipants++

	deposit, err := e.loadUserDeposit(c.ID, participant)
	if err != nil {
		return 0, err
	}
	if err := e.storeConfig(cfg); err != nil {
		return 0, err
	}
	if err := e.storeParticipation(p); err != nil {
		return 0, err
	}
	if err := e.storeCampaign(c); err != nil {
		return 0, err
	}
	if err := e.state.KVAppendUint64(campaignParticipationsKey(c.ID), p.ID); err != nil {
		return 0, err
	}
	if err := e.state.KVAppendUint64(userParticipationsKey(participant), p.ID); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(userDepositKey(c.ID, participant), deposit.Add(deposit, amount)); err != nil {
		return 0, err
	}

	if err := tok.TransferFrom(EscrowAddress, participant, EscrowAddress, amount); err != nil {
		return 0, fmt.Errorf("campaign: pull deposit: %w", err)
	}
	e.queue(newParticipationCreatedEvent(p))
	return p.ID, nil
}

// SettleCampaign pays out an ended campaign in one step: each active
// participant receives its discount, the platform and merchant fees go to the
// fee collector and the merchant receives the remainder.
func (e *Engine) SettleCampaign(caller common.Address, campaignID uint64) (*Settlement, error) {
	var result *Settlement
	err := e.execute(func() error {
		cfg, err := e.requireInitialized()
		if err != nil {
			return err
		}
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		c, err := e.loadCampaign(campaignID)
		if err != nil {
			return err
		}
		if caller != c.Merchant {
			if err := e.requireAnyRole(caller, OperatorRole, AdminRole); err != nil {
				return err
			}
		}
		if c.Status == CampaignSettled {
			return ErrAlreadySettled
		}
		if c.Status != CampaignActive {
			return ErrCampaignNotActive
		}
		if e.now() < c.EndTime {
			return ErrSettlementTooEarly
		}
		tok, err := e.token(c.Token)
		if err != nil {
			return err
		}

		ids, err := e.loadIDs(campaignParticipationsKey(c.ID))
		if err != nil {
			return err
		}
		active := make([]*Participation, 0, len(ids))
		totalDiscount := big.NewInt(0)
		for _, pid := range ids {
			p, err := e.loadParticipation(pid)
			if err != nil {
				return err
			}
			if p.IsRefunded || p.IsSettled {
				continue
			}
			discount, err := applyBps(p.DepositAmount, c.DiscountRate)
			if err != nil {
				return err
			}
			p.ActualDiscount = discount
			p.SettlementAmount = new(big.Int).Set(discount)
			p.IsSettled = true
			p.Status = ParticipationSettled
			totalDiscount.Add(totalDiscount, discount)
			active = append(active, p)
		}

		total := cloneBigInt(c.CurrentAmount)
		platformFee, err := applyBps(total, cfg.PlatformFee)
		if err != nil {
			return err
		}
		merchantFee, err := applyBps(total, cfg.MerchantFee)
		if err != nil {
			return err
		}
		merchantPayout := new(big.Int).Sub(total, totalDiscount)
		merchantPayout.Sub(merchantPayout, platformFee)
		merchantPayout.Sub(merchantPayout, merchantFee)
		if merchantPayout.Sign() < 0 {
			return ErrSettlementInsolvent
		}

		for _, p := range active {
			if err := e.storeParticipation(p); err != nil {
				return err
			}
		}
		c.Status = CampaignSettled
		c.TotalSettled = new(big.Int).Set(total)
		if err := e.storeCampaign(c); err != nil {
			return err
		}

		for _, p := range active {
			if err := payout(tok, p.Participant, p.ActualDiscount); err != nil {
				return fmt.Errorf("campaign: pay discount %d: %w", p.ID, err)
			}
		}
		fees := new(big.Int).Add(platformFee, merchantFee)
		if err := payout(tok, cfg.FeeCollector, fees); err != nil {
			return fmt.Errorf("campaign: pay fees: %w", err)
		}
		if err := payout(tok, c.Merchant, merchantPayout); err != nil {
			return fmt.Errorf("campaign: pay merchant: %w", err)
		}

		for _, p := range active {
			e.queue(newParticipationSettledEvent(p))
		}
		e.queue(newFeeCollectedEvent(c.ID, platformFee, merchantFee, cfg.FeeCollector))
		e.queue(newCampaignUpdatedEvent(c.ID, CampaignSettled))

		result = &Settlement{
			CampaignID:     c.ID,
			Total:          total,
			TotalDiscount:  totalDiscount,
			PlatformFee:    platformFee,
			MerchantFee:    merchantFee,
			MerchantPayout: merchantPayout,
			Participations: uint64(len(active)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Refund returns a participant's deposit minus the early withdrawal penalty.
// The penalty is forwarded to the treasury.
func (e *Engine) Refund(caller common.Address, participationID uint64) (*big.Int, error) {
	var refunded *big.Int
	err := e.execute(func() error {
		cfg, err := e.requireInitialized()
		if err != nil {
			return err
		}
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		p, err := e.loadParticipation(participationID)
		if err != nil {
			return err
		}
		if p.Participant != caller {
			return ErrNotParticipant
		}
		refunded, err = e.refund(cfg, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

// BatchRefund refunds every listed participation on behalf of its participant.
// The batch is applied all-or-nothing.
func (e *Engine) BatchRefund(caller common.Address, participationIDs []uint64) ([]*big.Int, error) {
	var refunds []*big.Int
	err := e.execute(func() error {
		cfg, err := e.requireInitialized()
		if err != nil {
			return err
		}
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		if err := e.requireRole(OperatorRole, caller); err != nil {
			return err
		}
		if len(participationIDs) == 0 {
			return ErrEmptyBatch
		}
		refunds = make([]*big.Int, 0, len(participationIDs))
		for i, pid := range participationIDs {
			p, err := e.loadParticipation(pid)
			if err != nil {
				return fmt.Errorf("batch entry %d: %w", i, err)
			}
			amount, err := e.refund(cfg, p)
			if err != nil {
				return fmt.Errorf("batch entry %d: %w", i, err)
			}
			refunds = append(refunds, amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

func (e *Engine) refund(cfg *Config, p *Participation) (*big.Int, error) {
	if p.IsRefunded {
		return nil, ErrAlreadyRefunded
	}
	if p.IsSettled {
		return nil, ErrAlreadySettled
	}
	c, err := e.loadCampaign(p.CampaignID)
	if err != nil {
		return nil, err
	}
	if c.Status == CampaignSettled {
		return nil, ErrAlreadySettled
	}
	tok, err := e.token(c.Token)
	if err != nil {
		return nil, err
	}
	refundAmount, err := applyBps(p.DepositAmount, BasisPoints-cfg.EarlyWithdrawPenalty)
	if err != nil {
		return nil, err
	}
	penalty := new(big.Int).Sub(p.DepositAmount, refundAmount)

	p.IsRefunded = true
	p.Status = ParticipationRefunded
	c.CurrentAmount = new(big.Int).Sub(c.CurrentAmount, p.DepositAmount)
	if c.CurrentAmount.Sign() < 0 {
		c.CurrentAmount.SetInt64(0)
	}
	if c.TotalParticipants > 0 {
		c.TotalParticipants--
	}
	deposit, err := e.loadUserDeposit(c.ID, p.Participant)
	if err != nil {
		return nil, err
	}
	deposit.Sub(deposit, p.DepositAmount)
	if deposit.Sign() < 0 {
		deposit.SetInt64(0)
	}
	if err := e.storeParticipation(p); err != nil {
		return nil, err
	}
	if err := e.storeCampaign(c); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(userDepositKey(c.ID, p.Participant), deposit); err != nil {
		return nil, err
	}

	if err := payout(tok, p.Participant, refundAmount); err != nil {
		return nil, fmt.Errorf("campaign: pay refund: %w", err)
	}
	if err := payout(tok, cfg.Treasury, penalty); err != nil {
		return nil, fmt.Errorf("campaign: forward penalty: %w", err)
	}
	e.queue(newRefundProcessedEvent(p, refundAmount))
	if penalty.Sign() > 0 {
		e.queue(newPenaltyCollectedEvent(p, penalty, cfg.Treasury))
	}
	return refundAmount, nil
}
