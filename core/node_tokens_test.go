package core

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
	"r2s/native/campaign"
	"r2s/native/token"
	"r2s/storage"
)

func (tn *testNode) openWith(db storage.Database, opts Options) {
	tn.t.Helper()
	opts.Now = func() int64 { return tn.clock }
	node, err := NewNode(db, opts)
	if err != nil {
		tn.t.Fatalf("new node: %v", err)
	}
	tn.node = node
}

func participationIDFrom(t *testing.T, receipt *types.Receipt) uint64 {
	t.Helper()
	var result struct {
		ParticipationID uint64 `json:"participationId"`
	}
	if err := json.Unmarshal(receipt.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return result.ParticipationID
}

func TestNodeRestartWithoutGenesisKeepsTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	tn := newTestNode(t, db)
	id := tn.createCampaign()
	tn.mustSucceed(tn.user, types.TxTypeTokenApprove, types.TokenApprovePayload{Token: usdtAddr, Spender: campaign.EscrowAddress, Amount: usdt(200)})
	pid := participationIDFrom(t, tn.mustSucceed(tn.user, types.TxTypeParticipate, types.ParticipatePayload{CampaignID: id, Amount: usdt(200)}))
	tn.node.Close()

	reopened, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	tn.openWith(reopened, Options{ChainID: testChainID})
	defer tn.node.Close()

	infos, err := tn.node.TokenInfos()
	if err != nil || len(infos) != 1 || infos[0].Symbol != "USDT" {
		t.Fatalf("token registry not restored: %+v (%v)", infos, err)
	}
	if got := tn.balance(campaign.EscrowAddress); got.Cmp(usdt(200)) != 0 {
		t.Fatalf("escrow balance %s", got)
	}
	tn.mustSucceed(tn.user, types.TxTypeRefund, types.RefundPayload{ParticipationID: pid})
	if got := tn.balance(campaign.EscrowAddress); got.Sign() != 0 {
		t.Fatalf("escrow should be empty after refund, got %s", got)
	}
	if got := tn.balance(addrOf(tn.user)); got.Cmp(usdt(9_990)) != 0 {
		t.Fatalf("user balance after refund %s", got)
	}
}

func TestNodeGenesisTokensReconcileOnRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	tn := newTestNode(t, db)
	head, _ := tn.node.EventHead()
	tn.node.Close()

	conflicting := testGenesis(addrOf(tn.admin), addrOf(tn.merchant), addrOf(tn.user))
	conflicting.Tokens[0].Name = "Tether USD"
	reopened, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	if _, err := NewNode(reopened, Options{Genesis: conflicting}); !errors.Is(err, token.ErrTokenMetadataConflict) {
		t.Fatalf("expected ErrTokenMetadataConflict, got %v", err)
	}

	daiAddr := common.HexToAddress("0x" + strings.Repeat("da", 20))
	extended := testGenesis(addrOf(tn.admin), addrOf(tn.merchant), addrOf(tn.user))
	extended.Tokens = append(extended.Tokens, extended.Tokens[0])
	extended.Tokens[1].Address = daiAddr.Hex()
	extended.Tokens[1].Symbol = "DAI"
	extended.Tokens[1].Decimals = 18
	tn.openWith(reopened, Options{Genesis: extended})
	defer tn.node.Close()

	infos, err := tn.node.TokenInfos()
	if err != nil || len(infos) != 2 {
		t.Fatalf("expected both tokens registered: %+v (%v)", infos, err)
	}
	registered, err := tn.node.Events(head+1, 10, token.EventTypeRegistered)
	if err != nil || len(registered) != 1 || registered[0].Event().Attributes["symbol"] != "DAI" {
		t.Fatalf("expected one journaled DAI registration: %+v (%v)", registered, err)
	}
	if bal := tn.balance(addrOf(tn.user)); bal.Cmp(usdt(10_000)) != 0 {
		t.Fatalf("genesis allocation re-applied on restart: %s", bal)
	}
}

func TestNodeRegisterTokenTransaction(t *testing.T) {
	tn := &testNode{t: t, clock: 1_700_000_000, admin: mustKey(t), merchant: mustKey(t), user: mustKey(t)}
	tn.openWith(storage.NewMemDB(), Options{ChainID: testChainID})
	admin := addrOf(tn.admin)

	register := types.TokenRegisterPayload{Token: usdtAddr, Name: "Mock USDT", Symbol: "USDT", Minter: admin}
	receipt := tn.submit(tn.admin, types.TxTypeTokenRegister, register)
	if receipt.Succeeded() || !strings.Contains(receipt.Reason, campaign.ErrNotInitialized.Error()) {
		t.Fatalf("registration before initialize should fail: %+v", receipt)
	}

	tn.mustSucceed(tn.admin, types.TxTypeInitialize, types.InitializePayload{
		Admin:        admin,
		FeeCollector: common.HexToAddress("0x" + strings.Repeat("f0", 20)),
		Treasury:     common.HexToAddress("0x" + strings.Repeat("f1", 20)),
	})
	receipt = tn.submit(tn.user, types.TxTypeTokenRegister, register)
	if receipt.Succeeded() || !strings.Contains(receipt.Reason, campaign.ErrUnauthorized.Error()) {
		t.Fatalf("non-admin registration should fail: %+v", receipt)
	}
	receipt = tn.mustSucceed(tn.admin, types.TxTypeTokenRegister, register)
	if !hasEvent(receipt.Events, token.EventTypeRegistered) {
		t.Fatalf("missing registration event: %+v", receipt.Events)
	}
	receipt = tn.submit(tn.admin, types.TxTypeTokenRegister, register)
	if receipt.Succeeded() || !strings.Contains(receipt.Reason, token.ErrTokenAlreadyRegistered.Error()) {
		t.Fatalf("duplicate registration should fail: %+v", receipt)
	}

	tn.mustSucceed(tn.admin, types.TxTypeWhitelistToken, types.WhitelistTokenPayload{Token: usdtAddr, Status: true})
	tn.mustSucceed(tn.admin, types.TxTypeGrantRole, types.RolePayload{Role: campaign.MerchantRole, Account: addrOf(tn.merchant)})
	tn.mustSucceed(tn.admin, types.TxTypeTokenMint, types.TokenMintPayload{Token: usdtAddr, To: addrOf(tn.user), Amount: usdt(1_000)})

	id := tn.createCampaign()
	tn.mustSucceed(tn.user, types.TxTypeTokenApprove, types.TokenApprovePayload{Token: usdtAddr, Spender: campaign.EscrowAddress, Amount: usdt(300)})
	tn.mustSucceed(tn.user, types.TxTypeParticipate, types.ParticipatePayload{CampaignID: id, Amount: usdt(300)})
	if got := tn.balance(campaign.EscrowAddress); got.Cmp(usdt(300)) != 0 {
		t.Fatalf("escrow balance %s", got)
	}
}

func TestNodeInitializeRequiresDeployer(t *testing.T) {
	deployer := mustKey(t)
	other := mustKey(t)
	tn := &testNode{t: t, clock: 1_700_000_000}
	tn.openWith(storage.NewMemDB(), Options{ChainID: testChainID, Deployer: addrOf(deployer)})

	payload := func(admin common.Address) types.InitializePayload {
		return types.InitializePayload{
			Admin:        admin,
			FeeCollector: common.HexToAddress("0x" + strings.Repeat("f0", 20)),
			Treasury:     common.HexToAddress("0x" + strings.Repeat("f1", 20)),
		}
	}
	receipt := tn.submit(other, types.TxTypeInitialize, payload(addrOf(other)))
	if receipt.Succeeded() || !strings.Contains(receipt.Reason, campaign.ErrUnauthorized.Error()) {
		t.Fatalf("non-deployer initialize should fail: %+v", receipt)
	}
	receipt = tn.submit(deployer, types.TxTypeInitialize, payload(addrOf(other)))
	if receipt.Succeeded() || !strings.Contains(receipt.Reason, campaign.ErrUnauthorized.Error()) {
		t.Fatalf("deployer naming another admin should fail: %+v", receipt)
	}
	tn.mustSucceed(deployer, types.TxTypeInitialize, payload(addrOf(deployer)))
	if ok, _ := tn.node.HasRole(campaign.DefaultAdminRole, addrOf(deployer)); !ok {
		t.Fatalf("deployer should hold the default admin role")
	}
}
