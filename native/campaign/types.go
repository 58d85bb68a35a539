package campaign

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// BasisPoints is the denominator for every rate in the ledger.
const BasisPoints = 10_000

// Defaults applied by Initialize.
const (
	DefaultPlatformFee          uint32 = 250
	DefaultMerchantFee          uint32 = 100
	DefaultEarlyWithdrawPenalty uint32 = 500
	DefaultMaxDiscountRate      uint32 = 5_000

	MaxPlatformFee          uint32 = 1_000
	MaxMerchantFee          uint32 = 1_000
	MaxEarlyWithdrawPenalty uint32 = 2_000

	InitialVersion = "1.0.0"
)

// CampaignStatus enumerates the lifecycle states of a campaign. The numeric
// values are part of the wire format.
type CampaignStatus uint8

const (
	CampaignDraft CampaignStatus = iota
	CampaignPending
	CampaignActive
	CampaignCompleted
	CampaignSettling
	CampaignSettled
	CampaignCancelled
)

var campaignStatusNames = [...]string{"draft", "pending", "active", "completed", "settling", "settled", "cancelled"}

func (s CampaignStatus) String() string {
	if int(s) < len(campaignStatusNames) {
		return campaignStatusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool { return int(s) < len(campaignStatusNames) }

// ParseCampaignStatus accepts either the lower-case name or the numeric value.
func ParseCampaignStatus(v string) (CampaignStatus, error) {
	trimmed := strings.ToLower(strings.TrimSpace(v))
	for i, name := range campaignStatusNames {
		if name == trimmed || fmt.Sprint(i) == trimmed {
			return CampaignStatus(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, v)
}

// allowedTransitions lists the administrative status overrides. Settled is
// only reachable through SettleCampaign.
var allowedTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:   {CampaignPending, CampaignCancelled},
	CampaignPending: {CampaignActive, CampaignCancelled},
	CampaignActive:  {CampaignCompleted, CampaignCancelled},
}

// CanTransition reports whether an operator may move a campaign from one status
// to another.
func CanTransition(from, to CampaignStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParticipationStatus mirrors the terminal flags of a participation.
type ParticipationStatus uint8

const (
	ParticipationActive ParticipationStatus = iota
	ParticipationSettled
	ParticipationRefunded
)

func (s ParticipationStatus) String() string {
	switch s {
	case ParticipationActive:
		return "active"
	case ParticipationSettled:
		return "settled"
	case ParticipationRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Campaign is a merchant-created group-buy offer.
type Campaign struct {
	ID                uint64         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	ImageURL          string         `json:"imageUrl"`
	Merchant          common.Address `json:"merchant"`
	Token             common.Address `json:"token"`
	TargetAmount      *big.Int       `json:"targetAmount"`
	CurrentAmount     *big.Int       `json:"currentAmount"`
	MinDeposit        *big.Int       `json:"minDeposit"`
	MaxDeposit        *big.Int       `json:"maxDeposit"`
	TotalSettled      *big.Int       `json:"totalSettled"`
	DiscountRate      uint32         `json:"discountRate"`
	StartTime         uint64         `json:"startTime"`
	EndTime           uint64         `json:"endTime"`
	SettlementDate    uint64         `json:"settlementDate"`
	TotalParticipants uint64         `json:"totalParticipants"`
	Status            CampaignStatus `json:"status"`
	IsVerified        bool           `json:"isVerified"`
}

// Clone returns a deep copy of the campaign.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.TargetAmount = cloneBigInt(c.TargetAmount)
	out.CurrentAmount = cloneBigInt(c.CurrentAmount)
	out.MinDeposit = cloneBigInt(c.MinDeposit)
	out.MaxDeposit = cloneBigInt(c.MaxDeposit)
	out.TotalSettled = cloneBigInt(c.TotalSettled)
	return &out
}

func (c *Campaign) normalize() {
	c.TargetAmount = cloneBigInt(c.TargetAmount)
	c.CurrentAmount = cloneBigInt(c.CurrentAmount)
	c.MinDeposit = cloneBigInt(c.MinDeposit)
	c.MaxDeposit = cloneBigInt(c.MaxDeposit)
	c.TotalSettled = cloneBigInt(c.TotalSettled)
}

// Participation is one deposit into one campaign.
type Participation struct {
	ID               uint64              `json:"id"`
	Participant      common.Address      `json:"participant"`
	CampaignID       uint64              `json:"campaignId"`
	DepositAmount    *big.Int            `json:"depositAmount"`
	DepositTime      uint64              `json:"depositTime"`
	ExpectedDiscount *big.Int            `json:"expectedDiscount"`
	ActualDiscount   *big.Int            `json:"actualDiscount"`
	SettlementAmount *big.Int            `json:"settlementAmount"`
	IsSettled        bool                `json:"isSettled"`
	IsRefunded       bool                `json:"isRefunded"`
	Status           ParticipationStatus `json:"status"`
}

// Clone returns a deep copy of the participation.
func (p *Participation) Clone() *Participation {
	if p == nil {
		return nil
	}
	out := *p
	out.DepositAmount = cloneBigInt(p.DepositAmount)
	out.ExpectedDiscount = cloneBigInt(p.ExpectedDiscount)
	out.ActualDiscount = cloneBigInt(p.ActualDiscount)
	out.SettlementAmount = cloneBigInt(p.SettlementAmount)
	return &out
}

func (p *Participation) normalize() {
	p.DepositAmount = cloneBigInt(p.DepositAmount)
	p.ExpectedDiscount = cloneBigInt(p.ExpectedDiscount)
	p.ActualDiscount = cloneBigInt(p.ActualDiscount)
	p.SettlementAmount = cloneBigInt(p.SettlementAmount)
}

// Config is the global ledger configuration.
type Config struct {
	Initialized          bool
	Paused               bool
	PlatformFee          uint32
	MerchantFee          uint32
	EarlyWithdrawPenalty uint32
	MaxDiscountRate      uint32
	FeeCollector         common.Address
	Treasury             common.Address
	Version              string
	NextCampaignID       uint64
	NextParticipationID  uint64
}

// Fees is the read view of the fee configuration.
type Fees struct {
	PlatformFee          uint32         `json:"platformFee"`
	MerchantFee          uint32         `json:"merchantFee"`
	EarlyWithdrawPenalty uint32         `json:"earlyWithdrawPenalty"`
	MaxDiscountRate      uint32         `json:"maxDiscountRate"`
	FeeCollector         common.Address `json:"feeCollector"`
	Treasury             common.Address `json:"treasury"`
}

// CreateParams carries the merchant-supplied campaign terms.
type CreateParams struct {
	Title            string
	Description      string
	ImageURL         string
	Token            common.Address
	TargetAmount     *big.Int
	MinDeposit       *big.Int
	MaxDeposit       *big.Int
	DiscountRate     uint32
	Duration         uint64
	SettlementPeriod uint64
}

// Settlement summarises the payouts of a settled campaign. The four payout
// components always sum to Total.
type Settlement struct {
	CampaignID     uint64   `json:"campaignId"`
	Total          *big.Int `json:"total"`
	TotalDiscount  *big.Int `json:"totalDiscount"`
	PlatformFee    *big.Int `json:"platformFee"`
	MerchantFee    *big.Int `json:"merchantFee"`
	MerchantPayout *big.Int `json:"merchantPayout"`
	Participations uint64   `json:"participations"`
}

// Stats is the aggregate view returned by GetCampaignStats.
type Stats struct {
	TotalParticipants uint64   `json:"totalParticipants"`
	TotalDeposited    *big.Int `json:"totalDeposited"`
	AverageDeposit    *big.Int `json:"averageDeposit"`
	CompletionRate    uint64   `json:"completionRate"`
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
