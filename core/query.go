package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"r2s/native/campaign"
	"r2s/native/token"
)

// The read accessors below take the node lock so callers observe state between
// transactions, never in the middle of one.

func (n *Node) Campaign(id uint64) (*campaign.Campaign, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.GetCampaign(id)
}

func (n *Node) Participation(id uint64) (*campaign.Participation, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.GetParticipation(id)
}

func (n *Node) CampaignParticipations(id uint64) ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.GetCampaignParticipations(id)
}

func (n *Node) UserParticipations(user common.Address) ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.GetUserParticipations(user)
}

func (n *Node) MerchantCampaigns(merchant common.Address) ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.GetMerchantCampaigns(merchant)
}

func (n *Node) CampaignStats(id uint64) (*campaign.Stats, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.GetCampaignStats(id)
}

func (n *Node) IsCampaignActive(id uint64) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.IsCampaignActive(id)
}

func (n *Node) UserCampaignDeposit(id uint64, user common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.UserCampaignDeposit(id, user)
}

// LedgerStatus is a snapshot of the global configuration.
type LedgerStatus struct {
	Initialized         bool           `json:"initialized"`
	Paused              bool           `json:"paused"`
	Version             string         `json:"version"`
	NextCampaignID      uint64         `json:"nextCampaignId"`
	NextParticipationID uint64         `json:"nextParticipationId"`
	Fees                *campaign.Fees `json:"fees"`
	ChainID             *big.Int       `json:"chainId"`
	EventHead           uint64         `json:"eventHead"`
}

func (n *Node) LedgerStatus() (*LedgerStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cfg, err := n.ledger.Config()
	if err != nil {
		return nil, err
	}
	fees, err := n.ledger.Fees()
	if err != nil {
		return nil, err
	}
	head, err := n.loadCounter(eventSeqKey)
	if err != nil {
		return nil, err
	}
	return &LedgerStatus{
		Initialized:         cfg.Initialized,
		Paused:              cfg.Paused,
		Version:             cfg.Version,
		NextCampaignID:      cfg.NextCampaignID,
		NextParticipationID: cfg.NextParticipationID,
		Fees:                fees,
		ChainID:             new(big.Int).Set(n.chainID),
		EventHead:           head,
	}, nil
}

func (n *Node) HasRole(role common.Hash, account common.Address) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.HasRole(role, account)
}

func (n *Node) RoleAdmin(role common.Hash) (common.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.RoleAdmin(role)
}

func (n *Node) IsWhitelisted(tokenAddr common.Address) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.IsWhitelisted(tokenAddr)
}

func (n *Node) IsBlacklisted(account common.Address) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.IsBlacklisted(account)
}

// TokenBalance returns the balance of account on tokenAddr.
func (n *Node) TokenBalance(tokenAddr, account common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	engine, err := n.tokens.MustGet(tokenAddr)
	if err != nil {
		return nil, err
	}
	return engine.BalanceOf(account)
}

// TokenAllowance returns how much spender may move on behalf of owner.
func (n *Node) TokenAllowance(tokenAddr, owner, spender common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	engine, err := n.tokens.MustGet(tokenAddr)
	if err != nil {
		return nil, err
	}
	return engine.Allowance(owner, spender)
}

// TokenInfo describes a registered token together with its supply.
type TokenInfo struct {
	token.Metadata
	TotalSupply *big.Int `json:"totalSupply"`
}

func (n *Node) TokenInfos() ([]TokenInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	metas, err := n.tokens.Tokens()
	if err != nil {
		return nil, err
	}
	out := make([]TokenInfo, 0, len(metas))
	for _, meta := range metas {
		engine, err := n.tokens.MustGet(meta.Address)
		if err != nil {
			return nil, err
		}
		supply, err := engine.TotalSupply()
		if err != nil {
			return nil, err
		}
		out = append(out, TokenInfo{Metadata: meta, TotalSupply: supply})
	}
	return out, nil
}
