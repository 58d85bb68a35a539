package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"r2s/core"
	"r2s/core/genesis"
	"r2s/core/types"
	"r2s/crypto"
	"r2s/native/campaign"
	"r2s/observability/logging"
	"r2s/rpc"
	"r2s/storage"
)

const testPassphrase = "correct horse battery staple"

var testToken = common.HexToAddress("0x" + strings.Repeat("ab", 20))

func init() {
	crypto.ScryptN, crypto.ScryptP = keystore.LightScryptN, keystore.LightScryptP
}

type cliLedger struct {
	node        *core.Node
	adminKey    string
	merchantKey string
	userKey     string
	admin       common.Address
	merchant    common.Address
	user        common.Address
	clock       int64
}

// stubPassphrase makes keystore prompts resolve without a terminal.
func stubPassphrase(t *testing.T) {
	t.Helper()
	original := passphraseFor
	passphraseFor = func(bool) func() (string, error) {
		return func() (string, error) { return testPassphrase, nil }
	}
	t.Cleanup(func() { passphraseFor = original })
}

func writeTestKeystore(t *testing.T, dir string) (string, common.Address) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	path := crypto.KeystorePath(dir, key.Address())
	require.NoError(t, crypto.SaveToKeystore(path, key, testPassphrase))
	return path, key.Address()
}

func newCLILedger(t *testing.T) *cliLedger {
	t.Helper()
	stubPassphrase(t)
	dir := t.TempDir()
	l := &cliLedger{clock: 1_700_000_000}
	l.adminKey, l.admin = writeTestKeystore(t, dir)
	l.merchantKey, l.merchant = writeTestKeystore(t, dir)
	l.userKey, l.user = writeTestKeystore(t, dir)

	chainID := uint64(777)
	spec := &genesis.GenesisSpec{
		ChainID: &chainID,
		Ledger: genesis.LedgerSpec{
			Admin:        l.admin.Hex(),
			FeeCollector: "0x" + strings.Repeat("0c", 20),
			Treasury:     "0x" + strings.Repeat("0d", 20),
		},
		Tokens: []genesis.TokenSpec{{
			Address:   testToken.Hex(),
			Symbol:    "USDT",
			Name:      "Mock USDT",
			Decimals:  6,
			Minter:    l.admin.Hex(),
			Whitelist: true,
		}},
		Alloc: map[string]map[string]string{l.user.Hex(): {"USDT": "5000000000"}},
		Roles: map[string][]string{"merchant": {l.merchant.Hex()}},
	}
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		Genesis: spec,
		Logger:  logging.Discard(),
		Now:     func() int64 { return l.clock },
	})
	require.NoError(t, err)
	l.node = node

	server := httptest.NewServer(rpc.NewServer(node, logging.Discard(), rpc.ServerConfig{}).Router())
	originalEndpoint, originalToken := rpcEndpoint, rpcAuthToken
	rpcEndpoint, rpcAuthToken = server.URL, ""
	t.Cleanup(func() {
		rpcEndpoint, rpcAuthToken = originalEndpoint, originalToken
		server.Close()
		node.Close()
	})
	return l
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestApplyGlobalFlags(t *testing.T) {
	original := rpcEndpoint
	defer func() { rpcEndpoint = original }()

	rest, err := applyGlobalFlags([]string{"--rpc", "http://node:1", "query", "status"})
	require.NoError(t, err)
	require.Equal(t, []string{"query", "status"}, rest)
	require.Equal(t, "http://node:1", rpcEndpoint)

	rest, err = applyGlobalFlags([]string{"query", "--rpc=http://node:2", "status"})
	require.NoError(t, err)
	require.Equal(t, []string{"query", "status"}, rest)
	require.Equal(t, "http://node:2", rpcEndpoint)

	_, err = applyGlobalFlags([]string{"query", "--rpc"})
	require.Error(t, err)
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI("bogus")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown command: bogus")

	code, stdout, _ := runCLI("help")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Usage: r2s-cli")
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1000", want: "1000"},
		{in: "1_000_000", want: "1000000"},
		{in: "500e6", want: "500000000"},
		{in: "0", want: "0"},
		{in: "-1", wantErr: true},
		{in: "1.5", wantErr: true},
		{in: "1e", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseAmount("amount", tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseAmount(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseAmount(%q): %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("parseAmount(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseSeconds(t *testing.T) {
	secs, err := parseSeconds("duration", "3600")
	require.NoError(t, err)
	require.Equal(t, uint64(3600), secs)

	secs, err = parseSeconds("duration", "720h")
	require.NoError(t, err)
	require.Equal(t, uint64(30*24*3600), secs)

	_, err = parseSeconds("duration", "soon")
	require.Error(t, err)
}

func TestValidationFailsBeforeRPC(t *testing.T) {
	original := rpcCall
	rpcCall = func(method string, _ interface{}, _ bool) (json.RawMessage, error) {
		t.Fatalf("unexpected RPC call %s", method)
		return nil, nil
	}
	defer func() { rpcCall = original }()

	cases := []struct {
		args []string
		want string
	}{
		{args: []string{"campaign", "participate", "--campaign", "1"}, want: "--amount is required"},
		{args: []string{"campaign", "create", "--title", "x", "--token", "nope"}, want: "--token must be"},
		{args: []string{"campaign", "batch-participate", "--campaign", "0", "--participants", "0x" + strings.Repeat("11", 20), "--amounts", "1,2"}, want: "same length"},
		{args: []string{"admin", "fees", "--platform", "20000", "--merchant", "1", "--penalty", "1"}, want: "<= 10000"},
		{args: []string{"admin", "grant", "--role", "janitor", "--account", "0x" + strings.Repeat("11", 20)}, want: "unknown role"},
		{args: []string{"query", "campaign"}, want: "--id is required"},
		{args: []string{"query", "receipt", "--hash", "0x1234"}, want: "32-byte hash"},
		{args: []string{"token", "transfer", "--token", testToken.Hex(), "--amount", "5"}, want: "--to is required"},
	}
	for _, tc := range cases {
		code, _, stderr := runCLI(tc.args...)
		if code != 1 {
			t.Fatalf("%v: expected exit 1, got %d", tc.args, code)
		}
		if !strings.Contains(stderr, tc.want) {
			t.Fatalf("%v: stderr %q does not contain %q", tc.args, stderr, tc.want)
		}
	}
}

func TestKeysGenerateAndAddress(t *testing.T) {
	stubPassphrase(t)
	dir := t.TempDir()

	code, stdout, stderr := runCLI("keys", "generate", "--dir", dir)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Address:")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	path := filepath.Join(dir, entries[0].Name())

	code, addrOut, stderr := runCLI("keys", "address", "--key", path)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, strings.TrimSpace(addrOut))

	key, err := loadSigner(path)
	require.NoError(t, err)
	require.Equal(t, strings.TrimSpace(addrOut), key.Address().Hex())
}

func TestKeysImport(t *testing.T) {
	stubPassphrase(t)
	dir := t.TempDir()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	code, stdout, stderr := runCLI("keys", "import", "--dir", dir, "--hex", key.Hex())
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, key.Address().Hex())

	loaded, err := loadSigner(crypto.KeystorePath(dir, key.Address()))
	require.NoError(t, err)
	require.Equal(t, key.Address(), loaded.Address())
}

func TestCampaignFlowAgainstNode(t *testing.T) {
	l := newCLILedger(t)

	code, _, stderr := runCLI("campaign", "create", "--key", l.merchantKey,
		"--title", "Spring drop", "--token", testToken.Hex(),
		"--target", "10000e6", "--min", "100e6", "--max", "1000e6",
		"--rate", "1000", "--duration", "720h", "--settlement-period", "168h")
	require.Equal(t, 0, code, stderr)

	c, err := l.node.Campaign(0)
	require.NoError(t, err)
	require.Equal(t, "Spring drop", c.Title)
	require.Equal(t, l.merchant, c.Merchant)
	require.Equal(t, uint32(1000), c.DiscountRate)

	code, _, stderr = runCLI("token", "approve", "--key", l.userKey,
		"--token", testToken.Hex(), "--spender", campaign.EscrowAddress.Hex(), "--amount", "500e6")
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := runCLI("campaign", "participate", "--key", l.userKey, "--campaign", "0", "--amount", "500e6")
	require.Equal(t, 0, code, stderr)
	var receipt types.Receipt
	require.NoError(t, json.Unmarshal([]byte(stdout), &receipt))
	require.True(t, receipt.Succeeded())
	require.Equal(t, l.user, receipt.Sender)

	nonce, err := l.node.Nonce(l.user)
	require.NoError(t, err)
	require.Equal(t, uint64(2), nonce)

	code, stdout, stderr = runCLI("query", "deposit", "--campaign", "0", "--user", l.user.Hex())
	require.Equal(t, 0, code, stderr)
	var deposit big.Int
	require.NoError(t, json.Unmarshal([]byte(stdout), &deposit))
	require.Equal(t, "500000000", deposit.String())

	code, stdout, stderr = runCLI("query", "user", "--address", l.user.Hex())
	require.Equal(t, 0, code, stderr)
	var ids []uint64
	require.NoError(t, json.Unmarshal([]byte(stdout), &ids))
	require.Equal(t, []uint64{0}, ids)

	code, _, stderr = runCLI("campaign", "settle", "--key", l.merchantKey, "--campaign", "0")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "failed")

	l.clock += 31 * 24 * 3600
	code, _, stderr = runCLI("campaign", "settle", "--key", l.merchantKey, "--campaign", "0")
	require.Equal(t, 0, code, stderr)

	c, err = l.node.Campaign(0)
	require.NoError(t, err)
	require.Equal(t, campaign.CampaignSettled, c.Status)
}

func TestAdminCommandsAgainstNode(t *testing.T) {
	l := newCLILedger(t)

	code, _, stderr := runCLI("admin", "pause", "--key", l.adminKey)
	require.Equal(t, 0, code, stderr)
	status, err := l.node.LedgerStatus()
	require.NoError(t, err)
	require.True(t, status.Paused)

	code, _, stderr = runCLI("admin", "unpause", "--key", l.adminKey)
	require.Equal(t, 0, code, stderr)

	code, _, stderr = runCLI("admin", "fees", "--key", l.adminKey, "--platform", "300", "--merchant", "150", "--penalty", "600")
	require.Equal(t, 0, code, stderr)
	status, err = l.node.LedgerStatus()
	require.NoError(t, err)
	require.Equal(t, uint32(300), status.Fees.PlatformFee)

	code, _, stderr = runCLI("admin", "blacklist", "--key", l.adminKey, "--account", l.user.Hex())
	require.Equal(t, 0, code, stderr)
	code, stdout, stderr := runCLI("query", "blacklisted", "--address", l.user.Hex())
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "true", strings.TrimSpace(stdout))

	code, _, stderr = runCLI("admin", "grant", "--key", l.adminKey, "--role", "operator", "--account", l.merchant.Hex())
	require.Equal(t, 0, code, stderr)
	code, stdout, stderr = runCLI("query", "has-role", "--role", "operator", "--account", l.merchant.Hex())
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "true", strings.TrimSpace(stdout))

	code, _, stderr = runCLI("admin", "renounce", "--key", l.merchantKey, "--role", "operator")
	require.Equal(t, 0, code, stderr)
	ok, err := l.node.HasRole(campaign.OperatorRole, l.merchant)
	require.NoError(t, err)
	require.False(t, ok)

	// Non-admins get a failed receipt.
	code, _, stderr = runCLI("admin", "pause", "--key", l.userKey)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "failed")
}

func TestRenounceDefaultsToSigner(t *testing.T) {
	stubPassphrase(t)
	keyPath, signer := writeTestKeystore(t, t.TempDir())

	var sent *types.Transaction
	original := rpcCall
	rpcCall = func(method string, params interface{}, requireAuth bool) (json.RawMessage, error) {
		switch method {
		case "ledger_status":
			return json.RawMessage(`{"chainId":9}`), nil
		case "ledger_nonce":
			return json.RawMessage(`{"nonce":4}`), nil
		case "ledger_sendTransaction":
			require.True(t, requireAuth)
			sent = params.(*types.Transaction)
			hash, err := sent.Hash()
			require.NoError(t, err)
			return json.Marshal(types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccess})
		}
		t.Fatalf("unexpected method %s", method)
		return nil, nil
	}
	defer func() { rpcCall = original }()

	code, _, stderr := runCLI("admin", "renounce", "--key", keyPath, "--role", "merchant")
	require.Equal(t, 0, code, stderr)
	require.NotNil(t, sent)
	require.Equal(t, types.TxTypeRenounceRole, sent.Type)
	require.Equal(t, uint64(4), sent.Nonce)
	require.Equal(t, int64(9), sent.ChainID.Int64())

	from, err := sent.From()
	require.NoError(t, err)
	require.Equal(t, signer, from)

	var payload types.RolePayload
	require.NoError(t, types.DecodePayload(sent.Data, &payload))
	require.Equal(t, campaign.MerchantRole, payload.Role)
	require.Equal(t, signer, payload.Account)
}
