package core

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
)

const (
	// MaxEventPage bounds a single journal query.
	MaxEventPage = 1000

	eventSeqKey = "node/meta/event-seq"
	txSeqKey    = "node/meta/tx-seq"
)

func nonceKey(addr common.Address) []byte {
	return []byte("node/nonce/" + addr.Hex())
}

func receiptKey(hash common.Hash) []byte {
	return []byte("node/receipt/" + hash.Hex())
}

func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("node/event/%020d", seq))
}

func (n *Node) loadCounter(key string) (uint64, error) {
	var v uint64
	if _, err := n.state.KVGet([]byte(key), &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (n *Node) nextTxSequence() (uint64, error) {
	seq, err := n.loadCounter(txSeqKey)
	if err != nil {
		return 0, err
	}
	seq++
	if err := n.state.KVPut([]byte(txSeqKey), seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// journalEvents appends evts to the event journal, assigning consecutive
// sequence numbers starting after the current head.
func (n *Node) journalEvents(txHash common.Hash, evts []types.Event) ([]*types.StoredEvent, error) {
	if len(evts) == 0 {
		return nil, nil
	}
	head, err := n.loadCounter(eventSeqKey)
	if err != nil {
		return nil, err
	}
	var hashBytes []byte
	if txHash != (common.Hash{}) {
		hashBytes = txHash.Bytes()
	}
	stored := make([]*types.StoredEvent, 0, len(evts))
	for i := range evts {
		head++
		record := types.NewStoredEvent(head, hashBytes, &evts[i])
		if err := n.state.KVPut(eventKey(head), record); err != nil {
			return nil, err
		}
		stored = append(stored, record)
	}
	if err := n.state.KVPut([]byte(eventSeqKey), head); err != nil {
		return nil, err
	}
	return stored, nil
}

func (n *Node) storeReceipt(receipt *types.Receipt) error {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("core: encode receipt: %w", err)
	}
	return n.state.KVPut(receiptKey(receipt.TxHash), raw)
}

// Receipt returns the stored receipt of an applied transaction.
func (n *Node) Receipt(hash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var raw []byte
	ok, err := n.state.KVGet(receiptKey(hash), &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReceiptNotFound
	}
	receipt := new(types.Receipt)
	if err := json.Unmarshal(raw, receipt); err != nil {
		return nil, fmt.Errorf("core: decode receipt: %w", err)
	}
	return receipt, nil
}

// EventHead returns the sequence number of the newest journaled event.
func (n *Node) EventHead() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loadCounter(eventSeqKey)
}

// Events returns up to limit journaled events with a sequence of at least from.
// A non-empty eventType keeps only events of that type; the scan still stops
// at the journal head.
func (n *Node) Events(from uint64, limit int, eventType string) ([]*types.StoredEvent, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readEvents(from, limit, eventType)
}

func (n *Node) readEvents(from uint64, limit int, eventType string) ([]*types.StoredEvent, error) {
	if limit <= 0 || limit > MaxEventPage {
		limit = MaxEventPage
	}
	if from == 0 {
		from = 1
	}
	head, err := n.loadCounter(eventSeqKey)
	if err != nil {
		return nil, err
	}
	out := make([]*types.StoredEvent, 0)
	for seq := from; seq <= head && len(out) < limit; seq++ {
		record := new(types.StoredEvent)
		ok, err := n.state.KVGet(eventKey(seq), record)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if eventType != "" && record.Type != eventType {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}
