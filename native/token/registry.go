package token

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/events"
)

var (
	registrySetKey     = []byte("token/registry")
	registryMetaPrefix = []byte("token/meta/")
)

type registryState interface {
	engineState
	KVGetList(key []byte, out interface{}) error
	KVSetMember(key []byte, member []byte, present bool) error
}

// Registry maps token addresses to their engines. Token definitions live in
// ledger state, so a registration survives restarts and is undone together
// with the transaction that made it.
type Registry struct {
	state   registryState
	emitter events.Emitter
}

// NewRegistry creates a registry bound to state.
func NewRegistry(state registryState, emitter events.Emitter) *Registry {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Registry{state: state, emitter: emitter}
}

func metaKey(addr common.Address) []byte {
	return append(append([]byte(nil), registryMetaPrefix...), addr.Bytes()...)
}

func normalizeMetadata(meta Metadata) Metadata {
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Symbol = strings.TrimSpace(meta.Symbol)
	if meta.Decimals == 0 {
		meta.Decimals = DefaultDecimals
	}
	return meta
}

func (r *Registry) engineFor(meta Metadata) *Engine {
	engine := NewEngine(meta)
	engine.SetState(r.state)
	engine.SetEmitter(r.emitter)
	return engine
}

func (r *Registry) load(addr common.Address) (*Metadata, error) {
	if r.state == nil {
		return nil, ErrNilState
	}
	var meta Metadata
	ok, err := r.state.KVGet(metaKey(addr), &meta)
	if err != nil {
		return nil, fmt.Errorf("token: load %s: %w", addr.Hex(), err)
	}
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

// Register stores meta and returns its engine. It fails when the address is
// already taken.
func (r *Registry) Register(meta Metadata) (*Engine, error) {
	if meta.Address == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	meta = normalizeMetadata(meta)
	if meta.Symbol == "" || meta.Decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: symbol required, decimals at most %d", ErrInvalidMetadata, MaxDecimals)
	}
	existing, err := r.load(meta.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTokenAlreadyRegistered
	}
	if err := r.state.KVPut(metaKey(meta.Address), &meta); err != nil {
		return nil, err
	}
	if err := r.state.KVSetMember(registrySetKey, meta.Address.Bytes(), true); err != nil {
		return nil, err
	}
	r.emitter.Emit(tokenEvent{evt: newRegisteredEvent(meta)})
	return r.engineFor(meta), nil
}

// Ensure registers meta unless the address is already known. A stored
// definition that differs from meta is rejected.
func (r *Registry) Ensure(meta Metadata) (*Engine, bool, error) {
	if meta.Address == (common.Address{}) {
		return nil, false, ErrZeroAddress
	}
	meta = normalizeMetadata(meta)
	existing, err := r.load(meta.Address)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		engine, err := r.Register(meta)
		return engine, err == nil, err
	}
	if *existing != meta {
		return nil, false, fmt.Errorf("%w: %s stored as %s/%s/%d minter %s", ErrTokenMetadataConflict,
			meta.Address.Hex(), existing.Symbol, existing.Name, existing.Decimals, existing.Minter.Hex())
	}
	return r.engineFor(*existing), false, nil
}

// Get returns the engine for addr.
func (r *Registry) Get(addr common.Address) (*Engine, bool) {
	engine, err := r.MustGet(addr)
	if err != nil {
		return nil, false
	}
	return engine, true
}

// MustGet returns the engine for addr or ErrUnknownToken.
func (r *Registry) MustGet(addr common.Address) (*Engine, error) {
	meta, err := r.load(addr)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrUnknownToken
	}
	return r.engineFor(*meta), nil
}

// Tokens lists the registered token metadata sorted by address.
func (r *Registry) Tokens() ([]Metadata, error) {
	if r.state == nil {
		return nil, ErrNilState
	}
	var members [][]byte
	if err := r.state.KVGetList(registrySetKey, &members); err != nil {
		return nil, err
	}
	out := make([]Metadata, 0, len(members))
	for _, member := range members {
		meta, err := r.load(common.BytesToAddress(member))
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return nil, fmt.Errorf("token: registry lists %x without metadata", member)
		}
		out = append(out, *meta)
	}
	return out, nil
}
