package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"r2s/core/events"
	"r2s/core/types"
)

const (
	EventTypeTransfer   = "token.transfer"
	EventTypeApproval   = "token.approval"
	EventTypeRegistered = "token.registered"

	// DefaultDecimals matches the stablecoins the ledger is deployed against.
	DefaultDecimals uint8 = 6
	MaxDecimals     uint8 = 18
)

var (
	ErrNilState               = errors.New("token: state not configured")
	ErrInvalidAmount          = errors.New("token: invalid amount")
	ErrZeroAddress            = errors.New("token: zero address")
	ErrInsufficientBalance    = errors.New("token: insufficient balance")
	ErrInsufficientAllowance  = errors.New("token: insufficient allowance")
	ErrNotMinter              = errors.New("token: caller is not the minter")
	ErrLengthMismatch         = errors.New("token: recipients and amounts length mismatch")
	ErrSupplyOverflow         = errors.New("token: total supply overflow")
	ErrUnknownToken           = errors.New("token: unknown token")
	ErrTokenAlreadyRegistered = errors.New("token: already registered")
	ErrTokenMetadataConflict  = errors.New("token: metadata conflicts with registered token")
	ErrInvalidMetadata        = errors.New("token: invalid metadata")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Metadata describes a fungible token hosted by the ledger.
type Metadata struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Minter   common.Address `json:"minter"`
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

// Engine keeps balances, allowances and supply for a single token in the
// shared state.
type Engine struct {
	meta    Metadata
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a token engine with a no-op emitter.
func NewEngine(meta Metadata) *Engine {
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Symbol = strings.TrimSpace(meta.Symbol)
	return &Engine{meta: meta, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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
	e.emitter.Emit(tokenEvent{evt: event})
}

// Metadata returns the token description.
func (e *Engine) Metadata() Metadata { return e.meta }

// Address returns the token address.
func (e *Engine) Address() common.Address { return e.meta.Address }

func (e *Engine) balanceKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("token/%s/balance/%s", e.meta.Address.Hex(), addr.Hex()))
}

func (e *Engine) allowanceKey(owner, spender common.Address) []byte {
	return []byte(fmt.Sprintf("token/%s/allowance/%s/%s", e.meta.Address.Hex(), owner.Hex(), spender.Hex()))
}

func (e *Engine) supplyKey() []byte {
	return []byte(fmt.Sprintf("token/%s/supply", e.meta.Address.Hex()))
}

func (e *Engine) loadAmount(key []byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	value := new(big.Int)
	ok, err := e.state.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (e *Engine) storeAmount(key []byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.state.KVPut(key, amount)
}

// toUint256 rejects negative or oversized amounts.
func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// BalanceOf returns the balance held by addr.
func (e *Engine) BalanceOf(addr common.Address) (*big.Int, error) {
	return e.loadAmount(e.balanceKey(addr))
}

// Allowance returns how much spender may still pull from owner.
func (e *Engine) Allowance(owner, spender common.Address) (*big.Int, error) {
	return e.loadAmount(e.allowanceKey(owner, spender))
}

// TotalSupply returns the number of tokens in circulation.
func (e *Engine) TotalSupply() (*big.Int, error) {
	return e.loadAmount(e.supplyKey())
}

func (e *Engine) move(from, to common.Address, amount *big.Int) error {
	if _, err := toUint256(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBal, err := e.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s need %s", ErrInsufficientBalance, fromBal, amount)
	}
	if from != to {
		toBal, err := e.BalanceOf(to)
		if err != nil {
			return err
		}
		if err := e.storeAmount(e.balanceKey(from), new(big.Int).Sub(fromBal, amount)); err != nil {
			return err
		}
		if err := e.storeAmount(e.balanceKey(to), new(big.Int).Add(toBal, amount)); err != nil {
			return err
		}
	}
	e.emit(newTransferEvent(e.meta.Address, from, to, amount))
	return nil
}

// Transfer moves amount from the sender to the recipient.
func (e *Engine) Transfer(from, to common.Address, amount *big.Int) error {
	return e.move(from, to, amount)
}

func (e *Engine) spendAllowance(owner, spender common.Address, amount *big.Int) error {
	allowance, err := e.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s need %s", ErrInsufficientAllowance, allowance, amount)
	}
	return e.storeAmount(e.allowanceKey(owner, spender), new(big.Int).Sub(allowance, amount))
}

// TransferFrom moves amount from owner to the recipient using the allowance
// owner granted to spender.
func (e *Engine) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if _, err := toUint256(amount); err != nil {
		return err
	}
	if err := e.spendAllowance(from, spender, amount); err != nil {
		return err
	}
	return e.move(from, to, amount)
}

// Approve sets the allowance spender may pull from owner.
func (e *Engine) Approve(owner, spender common.Address, amount *big.Int) error {
	if _, err := toUint256(amount); err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := e.storeAmount(e.allowanceKey(owner, spender), new(big.Int).Set(amount)); err != nil {
		return err
	}
	e.emit(newApprovalEvent(e.meta.Address, owner, spender, amount))
	return nil
}

func (e *Engine) requireMinter(caller common.Address) error {
	if e.meta.Minter == (common.Address{}) || caller != e.meta.Minter {
		return ErrNotMinter
	}
	return nil
}

func (e *Engine) mint(to common.Address, amount *big.Int) error {
	amt, err := toUint256(amount)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	current, _ := uint256.FromBig(supply)
	next, overflow := new(uint256.Int).AddOverflow(current, amt)
	if overflow {
		return ErrSupplyOverflow
	}
	bal, err := e.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := e.storeAmount(e.supplyKey(), next.ToBig()); err != nil {
		return err
	}
	if err := e.storeAmount(e.balanceKey(to), new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	e.emit(newTransferEvent(e.meta.Address, common.Address{}, to, amount))
	return nil
}

// Mint creates new tokens for the recipient. Only the minter may mint.
func (e *Engine) Mint(caller, to common.Address, amount *big.Int) error {
	if err := e.requireMinter(caller); err != nil {
		return err
	}
	return e.mint(to, amount)
}

// MintGenesis credits an allocation without a minter check. It is only used
// while applying genesis.
func (e *Engine) MintGenesis(to common.Address, amount *big.Int) error {
	return e.mint(to, amount)
}

// BatchMint mints amounts[i] to recipients[i]. Callers must revert state on
// error.
func (e *Engine) BatchMint(caller common.Address, recipients []common.Address, amounts []*big.Int) error {
	if err := e.requireMinter(caller); err != nil {
		return err
	}
	if len(recipients) != len(amounts) {
		return ErrLengthMismatch
	}
	for i := range recipients {
		if err := e.mint(recipients[i], amounts[i]); err != nil {
			return fmt.Errorf("batch mint %d: %w", i, err)
		}
	}
	return nil
}

func (e *Engine) burn(account common.Address, amount *big.Int) error {
	if _, err := toUint256(amount); err != nil {
		return err
	}
	bal, err := e.BalanceOf(account)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s need %s", ErrInsufficientBalance, bal, amount)
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	if err := e.storeAmount(e.balanceKey(account), new(big.Int).Sub(bal, amount)); err != nil {
		return err
	}
	if err := e.storeAmount(e.supplyKey(), new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}
	e.emit(newTransferEvent(e.meta.Address, account, common.Address{}, amount))
	return nil
}

// Burn destroys tokens held by the caller.
func (e *Engine) Burn(caller common.Address, amount *big.Int) error {
	return e.burn(caller, amount)
}

// BurnFrom destroys tokens held by account using the caller's allowance.
func (e *Engine) BurnFrom(caller, account common.Address, amount *big.Int) error {
	if _, err := toUint256(amount); err != nil {
		return err
	}
	if err := e.spendAllowance(account, caller, amount); err != nil {
		return err
	}
	return e.burn(account, amount)
}
