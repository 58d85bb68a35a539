package campaign

import (
	"errors"
	"fmt"

	nativecommon "r2s/native/common"
)

var (
	errNilState = errors.New("campaign engine: state not configured")

	ErrNotInitialized     = errors.New("campaign: not initialized")
	ErrAlreadyInitialized = errors.New("campaign: already initialized")
	ErrUnauthorized       = errors.New("campaign: unauthorized")
	ErrPaused             = fmt.Errorf("campaign: %w", nativecommon.ErrModulePaused)
	ErrNotPaused          = errors.New("campaign: not paused")
	ErrReentrantCall      = fmt.Errorf("campaign: %w", nativecommon.ErrReentrantCall)

	ErrCampaignNotFound      = errors.New("campaign: campaign not found")
	ErrParticipationNotFound = errors.New("campaign: participation not found")
	ErrCampaignNotActive     = errors.New("campaign: campaign not active")
	ErrCampaignNotStarted    = errors.New("campaign: campaign not started")
	ErrCampaignEnded         = errors.New("campaign: campaign ended")
	ErrSettlementTooEarly    = errors.New("campaign: campaign not ended")
	ErrAlreadySettled        = errors.New("campaign: already settled")
	ErrAlreadyRefunded       = errors.New("campaign: already refunded")
	ErrNotParticipant        = errors.New("campaign: not participant")
	ErrInvalidTransition     = errors.New("campaign: invalid status transition")
	ErrSettlementInsolvent   = errors.New("campaign: discounts and fees exceed deposits")

	ErrTokenNotWhitelisted     = errors.New("campaign: token not whitelisted")
	ErrTokenUnavailable        = errors.New("campaign: token not available")
	ErrDiscountTooHigh         = errors.New("campaign: discount rate too high")
	ErrInvalidDepositRange     = errors.New("campaign: invalid deposit range")
	ErrInvalidTarget           = errors.New("campaign: invalid target amount")
	ErrInvalidDuration         = errors.New("campaign: invalid duration")
	ErrInvalidSettlementPeriod = errors.New("campaign: invalid settlement period")
	ErrEmptyTitle              = errors.New("campaign: empty title")
	ErrBelowMinimum            = errors.New("campaign: below minimum deposit")
	ErrAboveMaximum            = errors.New("campaign: above maximum deposit")
	ErrInvalidAmount           = errors.New("campaign: invalid amount")
	ErrBlacklisted             = errors.New("campaign: account blacklisted")
	ErrBatchLengthMismatch     = errors.New("campaign: array length mismatch")
	ErrEmptyBatch              = errors.New("campaign: empty batch")
	ErrZeroAddress             = errors.New("campaign: zero address")
	ErrFeeTooHigh              = errors.New("campaign: fee too high")
	ErrInvalidStatus           = errors.New("campaign: invalid status")
	ErrInvalidVersion          = errors.New("campaign: invalid version")
	ErrRenounceMismatch        = errors.New("campaign: can only renounce roles for self")
)
