package rpc

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"r2s/core"
	"r2s/core/types"
)

func (s *Server) handleSendTransaction(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 1 {
		return nil, invalidParams("transaction parameter required", nil)
	}
	var tx types.Transaction
	dec := json.NewDecoder(bytes.NewReader(params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tx); err != nil {
		return nil, invalidParams("invalid transaction format", err.Error())
	}
	receipt, err := s.node.SubmitTransaction(&tx)
	if err != nil {
		if hash, hashErr := tx.Hash(); hashErr == nil {
			s.logger.Info("transaction rejected",
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("tx_hash", hash.Hex()),
				slog.String("tx_type", tx.Type.String()),
				slog.String("error", err.Error()))
		}
		return nil, errorFromDomain(err)
	}
	return receipt, nil
}

func (s *Server) handleGetReceipt(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p receiptParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.node.Receipt(p.TxHash)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return receipt, nil
}

func (s *Server) handleNonce(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := requireAddress("address", p.Address); rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.node.Nonce(p.Address)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return NonceResult{Address: p.Address, Nonce: nonce}, nil
}

func (s *Server) handleStatus(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	status, err := s.node.LedgerStatus()
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return status, nil
}

func (s *Server) handleEvents(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p eventsParams
	if rpcErr := decodeOptionalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Limit < 0 || p.Limit > core.MaxEventPage {
		return nil, invalidParams("limit out of range", core.MaxEventPage)
	}
	head, err := s.node.EventHead()
	if err != nil {
		return nil, errorFromDomain(err)
	}
	stored, err := s.node.Events(p.From, p.Limit, p.Type)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	result := EventsResult{Events: make([]EventResult, 0, len(stored)), Head: head}
	for _, evt := range stored {
		result.Events = append(result.Events, eventResultFrom(evt))
	}
	if len(stored) > 0 {
		result.Next = stored[len(stored)-1].Sequence + 1
	} else if p.From > head {
		result.Next = p.From
	} else {
		result.Next = head + 1
	}
	return result, nil
}
