package campaign

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// kvState is the journaled key-value store the engine persists into. Snapshot
// and RevertToSnapshot make every operation all-or-nothing.
type kvState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVGetList(key []byte, out interface{}) error
	KVAppendUint64(key []byte, v uint64) error
	Snapshot() int
	RevertToSnapshot(id int)
}

var configKey = []byte("campaign/config")

func campaignKey(id uint64) []byte {
	return []byte(fmt.Sprintf("campaign/record/%d", id))
}

func participationKey(id uint64) []byte {
	return []byte(fmt.Sprintf("campaign/participation/%d", id))
}

func campaignParticipationsKey(id uint64) []byte {
	return []byte(fmt.Sprintf("campaign/record/%d/participations", id))
}

func userParticipationsKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("campaign/user/%s/participations", addr.Hex()))
}

func merchantCampaignsKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("campaign/merchant/%s/campaigns", addr.Hex()))
}

func userDepositKey(id uint64, addr common.Address) []byte {
	return []byte(fmt.Sprintf("campaign/record/%d/deposit/%s", id, addr.Hex()))
}

func whitelistKey(token common.Address) []byte {
	return []byte(fmt.Sprintf("campaign/whitelist/%s", token.Hex()))
}

func blacklistKey(account common.Address) []byte {
	return []byte(fmt.Sprintf("campaign/blacklist/%s", account.Hex()))
}

func (e *Engine) loadConfig() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg := new(Config)
	if _, err := e.state.KVGet(configKey, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *Engine) storeConfig(cfg *Config) error {
	return e.state.KVPut(configKey, cfg)
}

func (e *Engine) loadCampaign(id uint64) (*Campaign, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	c := new(Campaign)
	ok, err := e.state.KVGet(campaignKey(id), c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCampaignNotFound, id)
	}
	c.normalize()
	return c, nil
}

func (e *Engine) storeCampaign(c *Campaign) error {
	return e.state.KVPut(campaignKey(c.ID), c)
}

func (e *Engine) loadParticipation(id uint64) (*Participation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p := new(Participation)
	ok, err := e.state.KVGet(participationKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrParticipationNotFound, id)
	}
	p.normalize()
	return p, nil
}

func (e *Engine) storeParticipation(p *Participation) error {
	return e.state.KVPut(participationKey(p.ID), p)
}

func (e *Engine) loadIDs(key []byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var ids []uint64
	if err := e.state.KVGetList(key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (e *Engine) loadUserDeposit(id uint64, addr common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	amount := new(big.Int)
	ok, err := e.state.KVGet(userDepositKey(id, addr), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (e *Engine) loadFlag(key []byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	var flag bool
	ok, err := e.state.KVGet(key, &flag)
	if err != nil {
		return false, err
	}
	return ok && flag, nil
}
