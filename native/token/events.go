package token

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
)

func newTransferEvent(token, from, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"token":  token.Hex(),
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amountString(amount),
		},
	}
}

func newApprovalEvent(token, owner, spender common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"token":   token.Hex(),
			"owner":   owner.Hex(),
			"spender": spender.Hex(),
			"amount":  amountString(amount),
		},
	}
}

func newRegisteredEvent(meta Metadata) *types.Event {
	return &types.Event{
		Type: EventTypeRegistered,
		Attributes: map[string]string{
			"token":    meta.Address.Hex(),
			"symbol":   meta.Symbol,
			"name":     meta.Name,
			"decimals": strconv.Itoa(int(meta.Decimals)),
			"minter":   meta.Minter.Hex(),
		},
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
