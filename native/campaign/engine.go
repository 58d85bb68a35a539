package campaign

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"r2s/core/events"
	"r2s/core/types"
	nativecommon "r2s/native/common"
)

// ModuleName identifies the campaign ledger for pause checks and logging.
const ModuleName = "campaign"

// EscrowAddress is the account that holds every deposit. Participants approve
// it as spender on the deposit token.
var EscrowAddress = common.BytesToAddress(ethcrypto.Keccak256([]byte("r2s/campaign/escrow"))[12:])

// Token is the fungible token collaborator used as deposit currency.
type Token interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) (*big.Int, error)
}

// TokenResolver looks up the token implementation for an address.
type TokenResolver func(addr common.Address) (Token, bool)

type campaignEvent struct {
	evt *types.Event
}

func (e campaignEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e campaignEvent) Event() *types.Event { return e.evt }

// Engine implements the campaign ledger: campaign lifecycle, deposits,
// settlement, refunds and the role-gated administration around them.
//
// Every write operation runs inside execute, which takes the reentrancy guard,
// snapshots state, and either commits the buffered events on success or reverts
// the state on failure.
type Engine struct {
	state   kvState
	emitter events.Emitter
	tokens  TokenResolver
	nowFn   func() int64
	guard   nativecommon.ReentrancyGuard
	pending []*types.Event
}

// NewEngine creates a campaign engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state kvState) { e.state = state }

// SetTokenResolver configures how token addresses map to implementations.
func (e *Engine) SetTokenResolver(resolver TokenResolver) { e.tokens = resolver }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(campaignEvent{evt: event})
}

// queue buffers an event until the surrounding operation succeeds.
func (e *Engine) queue(event *types.Event) {
	if event == nil {
		return
	}
	e.pending = append(e.pending, event)
}

func (e *Engine) now() uint64 {
	var ts int64
	if e == nil || e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) execute(fn func() error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard.Enter(); err != nil {
		return ErrReentrantCall
	}
	defer e.guard.Exit()

	snapshot := e.state.Snapshot()
	e.pending = nil
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.pending = nil
		return err
	}
	queued := e.pending
	e.pending = nil
	for _, evt := range queued {
		e.emit(evt)
	}
	return nil
}

// IsPaused implements native/common.PauseView.
func (e *Engine) IsPaused(module string) (bool, error) {
	if module != ModuleName {
		return false, nil
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return false, err
	}
	return cfg.Paused, nil
}

func (e *Engine) requireInitialized() (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Initialized {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) requireNotPaused() error {
	err := nativecommon.Guard(e, ModuleName)
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return ErrPaused
	}
	return err
}

func (e *Engine) requireNotBlacklisted(account common.Address) error {
	listed, err := e.loadFlag(blacklistKey(account))
	if err != nil {
		return err
	}
	if listed {
		return ErrBlacklisted
	}
	return nil
}

func (e *Engine) token(addr common.Address) (Token, error) {
	if e.tokens == nil {
		return nil, ErrTokenUnavailable
	}
	tok, ok := e.tokens(addr)
	if !ok || tok == nil {
		return nil, ErrTokenUnavailable
	}
	return tok, nil
}

// payout transfers amount out of escrow. Zero amounts are skipped.
func payout(tok Token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return tok.Transfer(EscrowAddress, to, amount)
}
