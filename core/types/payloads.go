package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Payloads carried in Transaction.Data. Amounts are JSON numbers in the
// token's smallest unit.

type InitializePayload struct {
	Admin        common.Address `json:"admin"`
	FeeCollector common.Address `json:"feeCollector"`
	Treasury     common.Address `json:"treasury"`
}

type TokenTransferPayload struct {
	Token  common.Address `json:"token"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type TokenApprovePayload struct {
	Token   common.Address `json:"token"`
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

type TokenTransferFromPayload struct {
	Token  common.Address `json:"token"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type TokenMintPayload struct {
	Token  common.Address `json:"token"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type TokenBatchMintPayload struct {
	Token      common.Address   `json:"token"`
	Recipients []common.Address `json:"recipients"`
	Amounts    []*big.Int       `json:"amounts"`
}

type TokenBurnPayload struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

type TokenBurnFromPayload struct {
	Token   common.Address `json:"token"`
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
}

// TokenRegisterPayload adds a token definition to the ledger. A zero
// Decimals selects the default of 6.
type TokenRegisterPayload struct {
	Token    common.Address `json:"token"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Minter   common.Address `json:"minter"`
}

type CreateCampaignPayload struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	ImageURL         string         `json:"imageUrl"`
	Token            common.Address `json:"token"`
	TargetAmount     *big.Int       `json:"targetAmount"`
	MinDeposit       *big.Int       `json:"minDeposit"`
	MaxDeposit       *big.Int       `json:"maxDeposit"`
	DiscountRate     uint32         `json:"discountRate"`
	Duration         uint64         `json:"duration"`
	SettlementPeriod uint64         `json:"settlementPeriod"`
}

type ParticipatePayload struct {
	CampaignID uint64   `json:"campaignId"`
	Amount     *big.Int `json:"amount"`
}

type BatchParticipatePayload struct {
	CampaignID   uint64           `json:"campaignId"`
	Participants []common.Address `json:"participants"`
	Amounts      []*big.Int       `json:"amounts"`
}

type CampaignIDPayload struct {
	CampaignID uint64 `json:"campaignId"`
}

type RefundPayload struct {
	ParticipationID uint64 `json:"participationId"`
}

type BatchRefundPayload struct {
	ParticipationIDs []uint64 `json:"participationIds"`
}

type WhitelistTokenPayload struct {
	Token  common.Address `json:"token"`
	Status bool           `json:"status"`
}

type BlacklistAccountPayload struct {
	Account common.Address `json:"account"`
	Status  bool           `json:"status"`
}

type UpdateFeesPayload struct {
	PlatformFee          uint32 `json:"platformFee"`
	MerchantFee          uint32 `json:"merchantFee"`
	EarlyWithdrawPenalty uint32 `json:"earlyWithdrawPenalty"`
}

type UpdateMaxDiscountPayload struct {
	MaxDiscountRate uint32 `json:"maxDiscountRate"`
}

type UpdateFeeAddressesPayload struct {
	FeeCollector common.Address `json:"feeCollector"`
	Treasury     common.Address `json:"treasury"`
}

type UpdateCampaignStatusPayload struct {
	CampaignID uint64 `json:"campaignId"`
	Status     uint8  `json:"status"`
}

type EmergencyWithdrawPayload struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

type RolePayload struct {
	Role    common.Hash    `json:"role"`
	Account common.Address `json:"account"`
}

type SetRoleAdminPayload struct {
	Role      common.Hash `json:"role"`
	AdminRole common.Hash `json:"adminRole"`
}

type UpgradeToPayload struct {
	Version string `json:"version"`
}

// EncodePayload marshals a payload into transaction data.
func EncodePayload(payload interface{}) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}

// DecodePayload unmarshals transaction data into dst. Empty data leaves dst
// untouched.
func DecodePayload(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("transaction: decode payload: %w", err)
	}
	return nil
}
