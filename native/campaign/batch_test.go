package campaign

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestBatchParticipate(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	f.events.Reset()

	ids, err := f.engine.BatchParticipate(operatorAddr, id, []common.Address{userA, userB}, []*big.Int{usdt(200), usdt(300)})
	if err != nil {
		t.Fatalf("batch participate: %v", err)
	}
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if p := f.participation(ids[1]); p.Participant != userB || p.DepositAmount.Cmp(usdt(300)) != 0 {
		t.Fatalf("unexpected participation %+v", p)
	}
	f.expectBalance(userA, usdt(9_800))
	f.expectBalance(EscrowAddress, usdt(500))
	if n := len(f.events.Filter(EventTypeParticipationCreated)); n != 2 {
		t.Fatalf("expected 2 participation events, got %d", n)
	}

	// Admins may batch as well.
	if _, err := f.engine.BatchParticipate(adminAddr, id, []common.Address{userC}, []*big.Int{usdt(100)}); err != nil {
		t.Fatalf("admin batch participate: %v", err)
	}
	f.checkDepositInvariant(id)
}

func TestBatchParticipateValidation(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	if _, err := f.engine.BatchParticipate(userA, id, []common.Address{userA}, []*big.Int{usdt(100)}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.BatchParticipate(operatorAddr, id, []common.Address{userA, userB}, []*big.Int{usdt(100)}); !errors.Is(err, ErrBatchLengthMismatch) {
		t.Fatalf("expected ErrBatchLengthMismatch, got %v", err)
	}
	if _, err := f.engine.BatchParticipate(operatorAddr, id, nil, nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestBatchParticipateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	if err := f.engine.BlacklistAccount(adminAddr, userC, true); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	f.events.Reset()

	cases := []struct {
		name    string
		users   []common.Address
		amounts []*big.Int
		want    error
	}{
		{"below minimum in second entry", []common.Address{userA, userB}, []*big.Int{usdt(200), usdt(50)}, ErrBelowMinimum},
		{"blacklisted last entry", []common.Address{userA, userB, userC}, []*big.Int{usdt(200), usdt(300), usdt(400)}, ErrBlacklisted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.BatchParticipate(operatorAddr, id, tc.users, tc.amounts)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			c := f.campaign(id)
			if c.CurrentAmount.Sign() != 0 || c.TotalParticipants != 0 {
				t.Fatalf("partial batch applied: %+v", c)
			}
			if next, _ := f.engine.NextParticipationID(); next != 0 {
				t.Fatalf("partial batch consumed ids: %d", next)
			}
			ids, _ := f.engine.GetUserParticipations(userA)
			if len(ids) != 0 {
				t.Fatalf("partial batch indexed participations: %v", ids)
			}
			f.expectBalance(userA, usdt(10_000))
			f.expectBalance(EscrowAddress, big.NewInt(0))
			if f.events.Len() != 0 {
				t.Fatalf("failed batch emitted events")
			}
		})
	}
}

func TestBatchRefund(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	p0 := f.participate(userA, id, usdt(200))
	p1 := f.participate(userB, id, usdt(400))
	p2 := f.participate(userC, id, usdt(100))

	if _, err := f.engine.BatchRefund(userA, []uint64{p0}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.BatchRefund(operatorAddr, nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}

	refunds, err := f.engine.BatchRefund(operatorAddr, []uint64{p0, p1})
	if err != nil {
		t.Fatalf("batch refund: %v", err)
	}
	if len(refunds) != 2 || refunds[0].Cmp(usdt(190)) != 0 || refunds[1].Cmp(usdt(380)) != 0 {
		t.Fatalf("unexpected refunds %v", refunds)
	}
	f.expectBalance(userA, usdt(9_990))
	f.expectBalance(userB, usdt(9_980))
	f.expectBalance(treasuryAddr, usdt(30))
	f.checkDepositInvariant(id)

	// p0 is already refunded, so the whole batch must be rejected and p2 kept.
	if _, err := f.engine.BatchRefund(operatorAddr, []uint64{p2, p0}); !errors.Is(err, ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
	}
	if f.participation(p2).IsRefunded {
		t.Fatalf("batch refund was partially applied")
	}
	f.expectBalance(userC, usdt(9_900))
	if _, err := f.engine.BatchRefund(operatorAddr, []uint64{p2, 99}); !errors.Is(err, ErrParticipationNotFound) {
		t.Fatalf("expected ErrParticipationNotFound, got %v", err)
	}
	f.checkDepositInvariant(id)
}

// reentrantToken calls back into the engine while a deposit is being pulled.
type reentrantToken struct {
	Token
	engine   *Engine
	target   uint64
	innerErr error
	calls    int
}

func (r *reentrantToken) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	r.calls++
	_, r.innerErr = r.engine.Participate(from, r.target, amount)
	return r.Token.TransferFrom(spender, from, to, amount)
}

func TestReentrantTokenCannotReenter(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	evil := &reentrantToken{Token: f.token, engine: f.engine, target: id}
	f.engine.SetTokenResolver(func(common.Address) (Token, bool) { return evil, true })

	pid := f.participate(userA, id, usdt(100))
	if !errors.Is(evil.innerErr, ErrReentrantCall) {
		t.Fatalf("expected nested call to fail with ErrReentrantCall, got %v", evil.innerErr)
	}
	if evil.calls != 1 {
		t.Fatalf("expected a single token pull, got %d", evil.calls)
	}
	c := f.campaign(id)
	if c.TotalParticipants != 1 || c.CurrentAmount.Cmp(usdt(100)) != 0 {
		t.Fatalf("reentrancy changed accounting: %+v", c)
	}
	if pid != 0 {
		t.Fatalf("unexpected participation id %d", pid)
	}
	f.checkDepositInvariant(id)
}

// failingToken accepts deposits but refuses to pay out to one address.
type failingToken struct {
	Token
	blocked common.Address
}

var errTransferBlocked = errors.New("transfer blocked")

func (ft *failingToken) Transfer(from, to common.Address, amount *big.Int) error {
	if to == ft.blocked {
		return errTransferBlocked
	}
	return ft.Token.Transfer(from, to, amount)
}

func TestSettlementRevertsWhenAnyTransferFails(t *testing.T) {
	f := newFixture(t)
	id := f.createCampaign()
	pA := f.participate(userA, id, usdt(500))
	f.participate(userB, id, usdt(300))

	f.engine.SetTokenResolver(func(common.Address) (Token, bool) {
		return &failingToken{Token: f.token, blocked: merchantAddr}, true
	})
	f.now = int64(f.campaign(id).EndTime)
	f.events.Reset()
	if _, err := f.engine.SettleCampaign(merchantAddr, id); !errors.Is(err, errTransferBlocked) {
		t.Fatalf("expected blocked transfer error, got %v", err)
	}
	if c := f.campaign(id); c.Status != CampaignActive || c.TotalSettled.Sign() != 0 {
		t.Fatalf("failed settlement left campaign %+v", c)
	}
	if f.participation(pA).IsSettled {
		t.Fatalf("failed settlement marked participation settled")
	}
	// Discounts paid before the failure are rolled back with the rest.
	f.expectBalance(userA, usdt(9_500))
	f.expectBalance(EscrowAddress, usdt(800))
	if f.events.Len() != 0 {
		t.Fatalf("failed settlement emitted events")
	}
}
