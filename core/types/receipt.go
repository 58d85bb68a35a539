package types

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ReceiptStatusFailed  uint8 = 0
	ReceiptStatusSuccess uint8 = 1
)

// Receipt records the outcome of an applied transaction. Failed transactions
// still consume their nonce; their events are dropped and Reason carries the
// error text.
type Receipt struct {
	TxHash   common.Hash     `json:"txHash"`
	Sender   common.Address  `json:"sender"`
	Nonce    uint64          `json:"nonce"`
	Type     string          `json:"type"`
	Status   uint8           `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Events   []Event         `json:"events"`
	Sequence uint64          `json:"sequence"`
	Time     uint64          `json:"time"`
}

// Succeeded reports whether the transaction applied without error.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccess
}
