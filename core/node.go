package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"r2s/core/events"
	"r2s/core/genesis"
	nhbstate "r2s/core/state"
	"r2s/core/types"
	"r2s/native/campaign"
	"r2s/native/token"
	"r2s/observability"
	"r2s/observability/logging"
	"r2s/storage"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNilTransaction  = errors.New("core: nil transaction")
	ErrChainIDMismatch = errors.New("core: chain id mismatch")
	ErrNonceMismatch   = errors.New("core: nonce mismatch")
	ErrUnknownTxType   = errors.New("core: unknown transaction type")
	ErrReceiptNotFound = errors.New("core: receipt not found")
	ErrDuplicateTx     = errors.New("core: transaction already applied")
)

// Options configures a Node.
type Options struct {
	// ChainID binds signatures to this ledger. Zero falls back to the genesis
	// chain id.
	ChainID uint64
	// Genesis seeds the ledger on first start. On later starts only tokens
	// it adds are registered. Nil leaves a fresh ledger uninitialised until
	// an initialize transaction arrives.
	Genesis *genesis.GenesisSpec
	// Deployer, when set, is the only account allowed to submit the
	// initialize transaction.
	Deployer common.Address
	Logger  *slog.Logger
	Metrics *observability.LedgerMetrics
	Now     func() int64
}

// Node is the central controller: it owns the state, applies signed
// transactions one at a time and journals their events.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	state    *nhbstate.Manager
	tokens   *token.Registry
	ledger   *campaign.Engine
	buffer   *events.Buffer
	chainID  *big.Int
	logger   *slog.Logger
	metrics  *observability.LedgerMetrics
	nowFn    func() int64
	deployer common.Address

	streamMu      sync.Mutex
	streamSubs    map[uint64]chan EventUpdate
	streamNextID  uint64
	streamHistory []EventUpdate
}

func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	chainID := opts.ChainID
	if opts.Genesis != nil {
		if err := opts.Genesis.Validate(); err != nil {
			return nil, fmt.Errorf("core: genesis: %w", err)
		}
		if id, ok := opts.Genesis.ChainIDValue(); ok {
			if chainID == 0 {
				chainID = id
			} else if chainID != id {
				return nil, fmt.Errorf("%w: config %d, genesis %d", ErrChainIDMismatch, chainID, id)
			}
		}
	}
	if chainID == 0 {
		return nil, fmt.Errorf("core: chain id must be set")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().Unix() }
	}

	st := nhbstate.NewManager(db)
	buffer := &events.Buffer{}
	tokens := token.NewRegistry(st, buffer)
	ledger := campaign.NewEngine()
	ledger.SetState(st)
	ledger.SetEmitter(buffer)
	ledger.SetNowFunc(nowFn)
	ledger.SetTokenResolver(func(addr common.Address) (campaign.Token, bool) {
		engine, ok := tokens.Get(addr)
		if !ok {
			return nil, false
		}
		return engine, true
	})

	n := &Node{
		db:       db,
		state:    st,
		tokens:   tokens,
		ledger:   ledger,
		buffer:   buffer,
		chainID:  new(big.Int).SetUint64(chainID),
		logger:   logger.With("component", "node"),
		metrics:  opts.Metrics,
		nowFn:    nowFn,
		deployer: opts.Deployer,
	}
	if opts.Genesis != nil {
		if err := n.applyGenesis(opts.Genesis); err != nil {
			return nil, err
		}
	}
	if err := n.loadStreamHistory(); err != nil {
		return nil, err
	}
	return n, nil
}

// applyGenesis reconciles the genesis tokens with the stored registry and
// seeds an uninitialised ledger. Tokens already in state must match their
// genesis definition; new ones are registered even on an initialised ledger.
func (n *Node) applyGenesis(spec *genesis.GenesisSpec) error {
	n.buffer.Reset()
	fail := func(err error) error {
		n.state.Discard()
		n.buffer.Reset()
		return err
	}
	added, err := genesis.RegisterTokens(spec, n.tokens)
	if err != nil {
		return fail(fmt.Errorf("core: genesis tokens: %w", err))
	}
	cfg, err := n.ledger.Config()
	if err != nil {
		return fail(err)
	}
	seeded := false
	if !cfg.Initialized {
		if err := genesis.Apply(spec, n.ledger, n.tokens); err != nil {
			return fail(fmt.Errorf("core: apply genesis: %w", err))
		}
		seeded = true
	}
	if n.state.Pending() == 0 {
		n.buffer.Reset()
		return nil
	}
	stored, err := n.journalEvents(common.Hash{}, n.buffer.Events())
	n.buffer.Reset()
	if err != nil {
		return fail(err)
	}
	if err := n.state.Commit(); err != nil {
		return fmt.Errorf("core: commit genesis: %w", err)
	}
	for _, evt := range stored {
		n.metrics.RecordEvent(evt.Type)
	}
	if seeded {
		n.logger.Info("genesis applied", "tokens", len(spec.Tokens), "admin", spec.Ledger.Admin)
	} else if added > 0 {
		n.logger.Info("genesis tokens registered", "tokens", added)
	}
	return nil
}

// ChainID returns the chain id transactions must be signed for.
func (n *Node) ChainID() *big.Int { return new(big.Int).Set(n.chainID) }

// Ledger exposes the campaign engine for read access in tests and tooling.
func (n *Node) Ledger() *campaign.Engine { return n.ledger }

// Tokens exposes the token registry.
func (n *Node) Tokens() *token.Registry { return n.tokens }

func (n *Node) now() uint64 {
	ts := n.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// SubmitTransaction validates and applies tx. Transactions that pass the
// signature and nonce checks always produce a receipt: a failed execution is
// reverted, its nonce is still consumed and the receipt carries the reason.
// An error is returned only when the transaction was rejected before
// execution.
func (n *Node) SubmitTransaction(tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	start := time.Now()
	if tx.ChainID == nil || tx.ChainID.Cmp(n.chainID) != 0 {
		return nil, fmt.Errorf("%w: want %s", ErrChainIDMismatch, n.chainID)
	}
	if !tx.Type.Valid() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTxType, byte(tx.Type))
	}
	sender, err := tx.From()
	if err != nil {
		return nil, err
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if ok, err := n.state.KVGet(receiptKey(hash), nil); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDuplicateTx
	}
	expected, err := n.nonce(sender)
	if err != nil {
		return nil, err
	}
	if tx.Nonce != expected {
		n.metrics.RecordNonceRejection()
		return nil, fmt.Errorf("%w: have %d, want %d", ErrNonceMismatch, tx.Nonce, expected)
	}

	n.buffer.Reset()
	snapshot := n.state.Snapshot()
	result, execErr := n.apply(sender, tx)
	receipt := &types.Receipt{
		TxHash: hash,
		Sender: sender,
		Nonce:  tx.Nonce,
		Type:   tx.Type.String(),
		Status: types.ReceiptStatusSuccess,
		Time:   n.now(),
		Events: []types.Event{},
	}
	if execErr != nil {
		n.state.RevertToSnapshot(snapshot)
		n.buffer.Reset()
		receipt.Status = types.ReceiptStatusFailed
		receipt.Reason = execErr.Error()
	} else {
		receipt.Result = result
	}

	stored, err := n.finalize(receipt)
	n.buffer.Reset()
	if err != nil {
		n.state.Discard()
		return nil, err
	}

	n.metrics.RecordTransaction(receipt.Type, execErr == nil, time.Since(start))
	if execErr != nil {
		n.logger.Warn("transaction failed",
			slog.String("tx_hash", hash.Hex()),
			slog.String("tx_type", receipt.Type),
			slog.String("sender", sender.Hex()),
			slog.String("reason", receipt.Reason))
	} else {
		n.logger.Debug("transaction applied",
			slog.String("tx_hash", hash.Hex()),
			slog.String("tx_type", receipt.Type),
			slog.String("sender", sender.Hex()),
			slog.Int("events", len(stored)))
	}
	n.publishEvents(stored)
	return receipt, nil
}

// finalize bumps the sender nonce, journals the events of a successful
// transaction, stores the receipt and commits.
func (n *Node) finalize(receipt *types.Receipt) ([]*types.StoredEvent, error) {
	if err := n.state.KVPut(nonceKey(receipt.Sender), receipt.Nonce+1); err != nil {
		return nil, err
	}
	seq, err := n.nextTxSequence()
	if err != nil {
		return nil, err
	}
	receipt.Sequence = seq
	var stored []*types.StoredEvent
	if receipt.Succeeded() {
		stored, err = n.journalEvents(receipt.TxHash, n.buffer.Events())
		if err != nil {
			return nil, err
		}
		for _, evt := range stored {
			receipt.Events = append(receipt.Events, *evt.Event())
		}
	}
	if err := n.storeReceipt(receipt); err != nil {
		return nil, err
	}
	if err := n.state.Commit(); err != nil {
		return nil, fmt.Errorf("core: commit: %w", err)
	}
	return stored, nil
}

// Nonce returns the next nonce expected from addr.
func (n *Node) Nonce(addr common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nonce(addr)
}

func (n *Node) nonce(addr common.Address) (uint64, error) {
	var nonce uint64
	if _, err := n.state.KVGet(nonceKey(addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Close releases the underlying database and ends every event subscription.
func (n *Node) Close() {
	n.closeStream()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.db.Close()
}
