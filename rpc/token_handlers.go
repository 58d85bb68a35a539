package rpc

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleTokenBalance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p tokenBalanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := requireAddress("token", p.Token); rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.TokenBalance(p.Token, p.Account)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return balance, nil
}

func (s *Server) handleTokenAllowance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p tokenAllowanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := requireAddress("token", p.Token); rpcErr != nil {
		return nil, rpcErr
	}
	allowance, err := s.node.TokenAllowance(p.Token, p.Owner, p.Spender)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return allowance, nil
}

func (s *Server) handleTokenList(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	infos, err := s.node.TokenInfos()
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return infos, nil
}
