package rpc

import (
	"errors"
	"net/http"

	"r2s/core"
	"r2s/core/types"
	"r2s/native/campaign"
	nativecommon "r2s/native/common"
	"r2s/native/token"
)

var (
	notFoundErrors = []error{
		campaign.ErrCampaignNotFound,
		campaign.ErrParticipationNotFound,
		core.ErrReceiptNotFound,
		token.ErrUnknownToken,
	}
	forbiddenErrors = []error{
		campaign.ErrUnauthorized,
		campaign.ErrBlacklisted,
		campaign.ErrNotParticipant,
		campaign.ErrRenounceMismatch,
		token.ErrNotMinter,
	}
	conflictErrors = []error{
		core.ErrNonceMismatch,
		campaign.ErrAlreadyInitialized,
		campaign.ErrAlreadySettled,
		campaign.ErrAlreadyRefunded,
		campaign.ErrInvalidTransition,
		campaign.ErrCampaignNotActive,
		campaign.ErrCampaignNotStarted,
		campaign.ErrCampaignEnded,
		campaign.ErrSettlementTooEarly,
		campaign.ErrNotPaused,
		campaign.ErrNotInitialized,
		nativecommon.ErrReentrantCall,
		token.ErrTokenAlreadyRegistered,
		token.ErrTokenMetadataConflict,
	}
	invalidParamErrors = []error{
		core.ErrChainIDMismatch,
		core.ErrUnknownTxType,
		core.ErrNilTransaction,
		types.ErrMissingSignature,
		types.ErrInvalidSignature,
		token.ErrInvalidMetadata,
	}
)

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorFromDomain maps ledger errors to JSON-RPC errors. Anything unknown is
// reported as a server error.
func errorFromDomain(err error) *RPCError {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	switch {
	case errors.Is(err, core.ErrDuplicateTx):
		return &RPCError{Code: codeDuplicateTx, Message: err.Error(), status: http.StatusConflict}
	case errors.Is(err, nativecommon.ErrModulePaused):
		return &RPCError{Code: codePaused, Message: err.Error(), Data: "paused", status: http.StatusServiceUnavailable}
	case matchesAny(err, notFoundErrors):
		return &RPCError{Code: codeNotFound, Message: err.Error(), Data: "not_found", status: http.StatusNotFound}
	case matchesAny(err, forbiddenErrors):
		return &RPCError{Code: codeForbidden, Message: err.Error(), Data: "forbidden", status: http.StatusForbidden}
	case matchesAny(err, conflictErrors):
		return &RPCError{Code: codeConflict, Message: err.Error(), Data: "conflict", status: http.StatusConflict}
	case matchesAny(err, invalidParamErrors):
		return &RPCError{Code: codeInvalidParams, Message: err.Error(), Data: "invalid_params", status: http.StatusBadRequest}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error(), status: http.StatusInternalServerError}
	}
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data, status: http.StatusBadRequest}
}
