package campaign

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/events"
	"r2s/core/state"
	"r2s/native/token"
	"r2s/storage"
)

const (
	day       = 24 * 60 * 60
	genesisTs = int64(1_700_000_000)
)

var (
	adminAddr    = testAddress(0xA0)
	merchantAddr = testAddress(0xB0)
	operatorAddr = testAddress(0xC0)
	feeCollector = testAddress(0xF0)
	treasuryAddr = testAddress(0xF1)
	minterAddr   = testAddress(0xEE)
	usdtAddr     = testAddress(0xD7)
	userA        = testAddress(0x01)
	userB        = testAddress(0x02)
	userC        = testAddress(0x03)
)

func testAddress(fill byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

// usdt converts whole units into 6-decimal smallest units.
func usdt(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000))
}

type fixture struct {
	t      *testing.T
	state  *state.Manager
	engine *Engine
	token  *token.Engine
	events *events.Buffer
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	reg := token.NewRegistry(st, nil)
	tok, err := reg.Register(token.Metadata{Address: usdtAddr, Name: "Mock USDT", Symbol: "USDT", Minter: minterAddr})
	if err != nil {
		t.Fatalf("register token: %v", err)
	}
	f := &fixture{t: t, state: st, token: tok, events: &events.Buffer{}, now: genesisTs}
	engine := NewEngine()
	engine.SetState(st)
	engine.SetEmitter(f.events)
	engine.SetNowFunc(func() int64 { return f.now })
	engine.SetTokenResolver(func(addr common.Address) (Token, bool) {
		e, ok := reg.Get(addr)
		if !ok {
			return nil, false
		}
		return e, true
	})
	f.engine = engine

	if err := engine.Initialize(adminAddr, feeCollector, treasuryAddr); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.GrantRole(adminAddr, MerchantRole, merchantAddr); err != nil {
		t.Fatalf("grant merchant: %v", err)
	}
	if err := engine.GrantRole(adminAddr, OperatorRole, operatorAddr); err != nil {
		t.Fatalf("grant operator: %v", err)
	}
	if err := engine.WhitelistToken(adminAddr, usdtAddr, true); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	for _, user := range []common.Address{userA, userB, userC} {
		f.fund(user, usdt(10_000))
	}
	f.events.Reset()
	return f
}

// fund mints tokens to user and approves the escrow for the full amount.
func (f *fixture) fund(user common.Address, amount *big.Int) {
	f.t.Helper()
	if err := f.token.Mint(minterAddr, user, amount); err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	if err := f.token.Approve(user, EscrowAddress, new(big.Int).Mul(amount, big.NewInt(10))); err != nil {
		f.t.Fatalf("approve: %v", err)
	}
}

func defaultParams() CreateParams {
	return CreateParams{
		Title:            "Premium Coffee Beans",
		Description:      "Group buy",
		ImageURL:         "https://example.com/coffee.png",
		Token:            usdtAddr,
		TargetAmount:     usdt(10_000),
		MinDeposit:       usdt(100),
		MaxDeposit:       usdt(1_000),
		DiscountRate:     1_000,
		Duration:         30 * day,
		SettlementPeriod: 7 * day,
	}
}

func (f *fixture) createCampaign() uint64 {
	f.t.Helper()
	id, err := f.engine.CreateCampaign(merchantAddr, defaultParams())
	if err != nil {
		f.t.Fatalf("create campaign: %v", err)
	}
	return id
}

func (f *fixture) participate(user common.Address, id uint64, amount *big.Int) uint64 {
	f.t.Helper()
	pid, err := f.engine.Participate(user, id, amount)
	if err != nil {
		f.t.Fatalf("participate: %v", err)
	}
	return pid
}

func (f *fixture) balance(addr common.Address) *big.Int {
	f.t.Helper()
	bal, err := f.token.BalanceOf(addr)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *fixture) expectBalance(addr common.Address, want *big.Int) {
	f.t.Helper()
	if got := f.balance(addr); got.Cmp(want) != 0 {
		f.t.Fatalf("balance of %s: got %s want %s", addr.Hex(), got, want)
	}
}

func (f *fixture) campaign(id uint64) *Campaign {
	f.t.Helper()
	c, err := f.engine.GetCampaign(id)
	if err != nil {
		f.t.Fatalf("get campaign: %v", err)
	}
	return c
}

func (f *fixture) participation(id uint64) *Participation {
	f.t.Helper()
	p, err := f.engine.GetParticipation(id)
	if err != nil {
		f.t.Fatalf("get participation: %v", err)
	}
	return p
}

// checkDepositInvariant asserts CurrentAmount equals the sum of non-refunded
// deposits and no participation is both settled and refunded.
func (f *fixture) checkDepositInvariant(id uint64) {
	f.t.Helper()
	c := f.campaign(id)
	ids, err := f.engine.GetCampaignParticipations(id)
	if err != nil {
		f.t.Fatalf("participations: %v", err)
	}
	sum := big.NewInt(0)
	for _, pid := range ids {
		p := f.participation(pid)
		if p.IsSettled && p.IsRefunded {
			f.t.Fatalf("participation %d is both settled and refunded", pid)
		}
		if p.DepositAmount.Cmp(c.MinDeposit) < 0 || p.DepositAmount.Cmp(c.MaxDeposit) > 0 {
			f.t.Fatalf("participation %d deposit %s outside bounds", pid, p.DepositAmount)
		}
		if !p.IsRefunded {
			sum.Add(sum, p.DepositAmount)
		}
	}
	if c.CurrentAmount.Cmp(sum) != 0 {
		f.t.Fatalf("current amount %s != sum of active deposits %s", c.CurrentAmount, sum)
	}
}
