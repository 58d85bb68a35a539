package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
)

// EventResult is a journaled event as returned by ledger_events.
type EventResult struct {
	Sequence   uint64            `json:"sequence"`
	TxHash     string            `json:"txHash,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func eventResultFrom(stored *types.StoredEvent) EventResult {
	result := EventResult{
		Sequence:   stored.Sequence,
		Type:       stored.Type,
		Attributes: stored.Event().Attributes,
	}
	if len(stored.TxHash) > 0 {
		result.TxHash = common.BytesToHash(stored.TxHash).Hex()
	}
	return result
}

// EventsResult pages through the event journal.
type EventsResult struct {
	Events []EventResult `json:"events"`
	Next   uint64        `json:"next"`
	Head   uint64        `json:"head"`
}

type NonceResult struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

type campaignIDParams struct {
	CampaignID *uint64 `json:"campaignId"`
}

type participationIDParams struct {
	ParticipationID *uint64 `json:"participationId"`
}

type accountParams struct {
	Address common.Address `json:"address"`
}

type roleParams struct {
	Role    string         `json:"role"`
	Account common.Address `json:"account"`
}

type userDepositParams struct {
	CampaignID *uint64        `json:"campaignId"`
	User       common.Address `json:"user"`
}

type tokenParams struct {
	Token common.Address `json:"token"`
}

type tokenBalanceParams struct {
	Token   common.Address `json:"token"`
	Account common.Address `json:"account"`
}

type tokenAllowanceParams struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
}

type receiptParams struct {
	TxHash common.Hash `json:"txHash"`
}

type eventsParams struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit"`
	Type  string `json:"type"`
}

// decodeParams expects a single parameter object and rejects unknown fields.
func decodeParams(params []json.RawMessage, dst interface{}) *RPCError {
	if len(params) != 1 {
		return invalidParams("expected a single parameter object", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

// decodeOptionalParams accepts zero parameters as an empty object.
func decodeOptionalParams(params []json.RawMessage, dst interface{}) *RPCError {
	if len(params) == 0 {
		return nil
	}
	return decodeParams(params, dst)
}

func requireID(name string, v *uint64) (uint64, *RPCError) {
	if v == nil {
		return 0, invalidParams(fmt.Sprintf("%s is required", name), nil)
	}
	return *v, nil
}

func requireAddress(name string, addr common.Address) *RPCError {
	if addr == (common.Address{}) {
		return invalidParams(fmt.Sprintf("%s is required", name), nil)
	}
	return nil
}
