package core

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
	"r2s/native/campaign"
	"r2s/native/token"
)

// apply executes tx on behalf of sender. The caller reverts state on error.
func (n *Node) apply(sender common.Address, tx *types.Transaction) (json.RawMessage, error) {
	switch tx.Type {
	case types.TxTypeInitialize:
		var p types.InitializePayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return nil, err
		}
		if err := n.authorizeInitialize(sender, p.Admin); err != nil {
			return nil, err
		}
		return nil, n.ledger.Initialize(p.Admin, p.FeeCollector, p.Treasury)

	case types.TxTypeTokenTransfer, types.TxTypeTokenApprove, types.TxTypeTokenTransferFrom,
		types.TxTypeTokenMint, types.TxTypeTokenBatchMint, types.TxTypeTokenBurn, types.TxTypeTokenBurnFrom,
		types.TxTypeTokenRegister:
		return nil, n.applyToken(sender, tx)

	case types.TxTypeCreateCampaign:
		var p types.CreateCampaignPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return nil, err
		}
		id, err := n.ledger.CreateCampaign(sender, campaign.CreateParams{
			Title:            p.Title,
			Description:      p.Description,
			ImageURL:         p.ImageURL,
			Token:            p.Token,
			TargetAmount:     p.TargetAmount,
			MinDeposit:       p.MinDeposit,
			MaxDeposit:       p.MaxDeposit,
			DiscountRate:     p.DiscountRate,
			Duration:         p.Duration,
			SettlementPeriod: p.SettlementPeriod,
		})
		if err != nil {
			return nil, err
		}
		return encodeResult(map[string]uint64{"campaignId": id})

	case types.TxTypeParticipate:
		var p types.ParticipatePayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return nil, err
		}
		id, err := n.ledger.Participate(sender, p.CampaignID, p.Amount)
		if err != nil {
			return nil, err
		}
		return encodeResult(map[string]uint64{"participationId": id})

	case types.TxTypeBatchParticipate:
		var p types.BatchParticipatePayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return nil, err
		}
		ids, err := n.ledger.BatchParticipate(sender, p.CampaignID, p.Participants, p.Amounts)
		if err != nil {
			return nil, err
		}
		return encodeResult(map[string][]uint64{"participationIds": ids})

	case types.TxTypeSettleCampaign:
		var p types.CampaignIDPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return nil, err
		}
		settlement, err := n.ledger.SettleCampaign(sender, p.CampaignID)
		if err != nil {
			return nil, err
		}
		return encodeResult(settlement)

	case types.TxTypeRefund:
		var p types.RefundPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return nil, err
		}
		amount, err := n.ledger.Refund(sender, p.ParticipationID)
		if err != nil {
			return nil, err
		}
		return encodeResult(map[string]*big.Int{"refundAmount": amount})

	case types.TxTypeBatchRefund:
		var p types.BatchRefundPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return nil, err
		}
		amounts, err := n.ledger.BatchRefund(sender, p.ParticipationIDs)
		if err != nil {
			return nil, err
		}
		return encodeResult(map[string][]*big.Int{"refundAmounts": amounts})

	default:
		return nil, n.applyAdmin(sender, tx)
	}
}

// authorizeInitialize restricts initialisation to the configured deployer, and
// the deployer may only name itself as admin.
func (n *Node) authorizeInitialize(sender, admin common.Address) error {
	if n.deployer != (common.Address{}) && sender != n.deployer {
		return fmt.Errorf("%w: initialize is reserved for deployer %s", campaign.ErrUnauthorized, n.deployer.Hex())
	}
	if sender != admin {
		return fmt.Errorf("%w: initializer must name itself as admin", campaign.ErrUnauthorized)
	}
	return nil
}

// requireLedgerAdmin admits holders of the campaign ADMIN or DEFAULT_ADMIN
// role on an initialised ledger.
func (n *Node) requireLedgerAdmin(sender common.Address) error {
	cfg, err := n.ledger.Config()
	if err != nil {
		return err
	}
	if !cfg.Initialized {
		return campaign.ErrNotInitialized
	}
	for _, role := range []common.Hash{campaign.AdminRole, campaign.DefaultAdminRole} {
		ok, err := n.ledger.HasRole(role, sender)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s lacks the admin role", campaign.ErrUnauthorized, sender.Hex())
}

func (n *Node) applyAdmin(sender common.Address, tx *types.Transaction) error {
	switch tx.Type {
	case types.TxTypePause:
		return n.ledger.Pause(sender)
	case types.TxTypeUnpause:
		return n.ledger.Unpause(sender)
	case types.TxTypeWhitelistToken:
		var p types.WhitelistTokenPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.WhitelistToken(sender, p.Token, p.Status)
	case types.TxTypeBlacklistAccount:
		var p types.BlacklistAccountPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.BlacklistAccount(sender, p.Account, p.Status)
	case types.TxTypeUpdateFees:
		var p types.UpdateFeesPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.UpdateFees(sender, p.PlatformFee, p.MerchantFee, p.EarlyWithdrawPenalty)
	case types.TxTypeUpdateMaxDiscount:
		var p types.UpdateMaxDiscountPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.UpdateMaxDiscountRate(sender, p.MaxDiscountRate)
	case types.TxTypeUpdateFeeAddresses:
		var p types.UpdateFeeAddressesPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.UpdateFeeAddresses(sender, p.FeeCollector, p.Treasury)
	case types.TxTypeUpdateCampaignStatus:
		var p types.UpdateCampaignStatusPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.UpdateCampaignStatus(sender, p.CampaignID, campaign.CampaignStatus(p.Status))
	case types.TxTypeVerifyCampaign:
		var p types.CampaignIDPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.VerifyCampaign(sender, p.CampaignID)
	case types.TxTypeEmergencyWithdraw:
		var p types.EmergencyWithdrawPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.EmergencyWithdraw(sender, p.Token, p.Amount)
	case types.TxTypeGrantRole, types.TxTypeRevokeRole, types.TxTypeRenounceRole:
		var p types.RolePayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		switch tx.Type {
		case types.TxTypeGrantRole:
			return n.ledger.GrantRole(sender, p.Role, p.Account)
		case types.TxTypeRevokeRole:
			return n.ledger.RevokeRole(sender, p.Role, p.Account)
		default:
			return n.ledger.RenounceRole(sender, p.Role, p.Account)
		}
	case types.TxTypeSetRoleAdmin:
		var p types.SetRoleAdminPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.SetRoleAdmin(sender, p.Role, p.AdminRole)
	case types.TxTypeUpgradeTo:
		var p types.UpgradeToPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		return n.ledger.UpgradeTo(sender, p.Version)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTxType, tx.Type)
	}
}

func (n *Node) applyToken(sender common.Address, tx *types.Transaction) error {
	tokenFor := func(addr common.Address) (*token.Engine, error) {
		return n.tokens.MustGet(addr)
	}
	switch tx.Type {
	case types.TxTypeTokenRegister:
		var p types.TokenRegisterPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		if err := n.requireLedgerAdmin(sender); err != nil {
			return err
		}
		_, err := n.tokens.Register(token.Metadata{
			Address:  p.Token,
			Name:     p.Name,
			Symbol:   p.Symbol,
			Decimals: p.Decimals,
			Minter:   p.Minter,
		})
		return err
	case types.TxTypeTokenTransfer:
		var p types.TokenTransferPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		engine, err := tokenFor(p.Token)
		if err != nil {
			return err
		}
		return engine.Transfer(sender, p.To, p.Amount)
	case types.TxTypeTokenApprove:
		var p types.TokenApprovePayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		engine, err := tokenFor(p.Token)
		if err != nil {
			return err
		}
		return engine.Approve(sender, p.Spender, p.Amount)
	case types.TxTypeTokenTransferFrom:
		var p types.TokenTransferFromPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		engine, err := tokenFor(p.Token)
		if err != nil {
			return err
		}
		return engine.TransferFrom(sender, p.From, p.To, p.Amount)
	case types.TxTypeTokenMint:
		var p types.TokenMintPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		engine, err := tokenFor(p.Token)
		if err != nil {
			return err
		}
		return engine.Mint(sender, p.To, p.Amount)
	case types.TxTypeTokenBatchMint:
		var p types.TokenBatchMintPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		engine, err := tokenFor(p.Token)
		if err != nil {
			return err
		}
		return engine.BatchMint(sender, p.Recipients, p.Amounts)
	case types.TxTypeTokenBurn:
		var p types.TokenBurnPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		engine, err := tokenFor(p.Token)
		if err != nil {
			return err
		}
		return engine.Burn(sender, p.Amount)
	case types.TxTypeTokenBurnFrom:
		var p types.TokenBurnFromPayload
		if err := types.DecodePayload(tx.Data, &p); err != nil {
			return err
		}
		engine, err := tokenFor(p.Token)
		if err != nil {
			return err
		}
		return engine.BurnFrom(sender, p.Account, p.Amount)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTxType, tx.Type)
	}
}

func encodeResult(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("core: encode result: %w", err)
	}
	return raw, nil
}
