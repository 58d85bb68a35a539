package rpc

import (
	"encoding/json"
	"net/http"

	"r2s/native/campaign"
)

func (s *Server) handleCampaignGet(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p campaignIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := requireID("campaignId", p.CampaignID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	c, err := s.node.Campaign(id)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return c, nil
}

func (s *Server) handleParticipationGet(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p participationIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := requireID("participationId", p.ParticipationID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	participation, err := s.node.Participation(id)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return participation, nil
}

func (s *Server) handleCampaignParticipations(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p campaignIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := requireID("campaignId", p.CampaignID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ids, err := s.node.CampaignParticipations(id)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return nonNilIDs(ids), nil
}

func (s *Server) handleUserParticipations(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ids, err := s.node.UserParticipations(p.Address)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return nonNilIDs(ids), nil
}

func (s *Server) handleMerchantCampaigns(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ids, err := s.node.MerchantCampaigns(p.Address)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return nonNilIDs(ids), nil
}

func (s *Server) handleCampaignStats(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p campaignIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := requireID("campaignId", p.CampaignID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	stats, err := s.node.CampaignStats(id)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return stats, nil
}

func (s *Server) handleCampaignIsActive(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p campaignIDParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := requireID("campaignId", p.CampaignID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	active, err := s.node.IsCampaignActive(id)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return active, nil
}

func (s *Server) handleUserDeposit(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p userDepositParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := requireID("campaignId", p.CampaignID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.node.UserCampaignDeposit(id, p.User)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return amount, nil
}

func (s *Server) handleHasRole(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p roleParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	role, err := campaign.ParseRole(p.Role)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	ok, err := s.node.HasRole(role, p.Account)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return ok, nil
}

func (s *Server) handleRoleAdmin(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p roleParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	role, err := campaign.ParseRole(p.Role)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	admin, err := s.node.RoleAdmin(role)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return admin, nil
}

func (s *Server) handleIsWhitelisted(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p tokenParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.node.IsWhitelisted(p.Token)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return ok, nil
}

func (s *Server) handleIsBlacklisted(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.node.IsBlacklisted(p.Address)
	if err != nil {
		return nil, errorFromDomain(err)
	}
	return ok, nil
}

func nonNilIDs(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}
