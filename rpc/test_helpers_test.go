package rpc

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"r2s/core"
	"r2s/core/genesis"
	"r2s/core/types"
	"r2s/observability/logging"
	"r2s/storage"
)

const testChainID = uint64(4242)

var testToken = common.HexToAddress("0x" + strings.Repeat("ab", 20))

type testEnv struct {
	t        *testing.T
	node     *core.Node
	server   *Server
	http     *httptest.Server
	admin    *ecdsa.PrivateKey
	merchant *ecdsa.PrivateKey
	user     *ecdsa.PrivateKey
	clock    int64
}

type testResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func addrOf(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	env := &testEnv{t: t, admin: mustKey(t), merchant: mustKey(t), user: mustKey(t), clock: 1_700_000_000}
	chainID := testChainID
	spec := &genesis.GenesisSpec{
		ChainID: &chainID,
		Ledger: genesis.LedgerSpec{
			Admin:        addrOf(env.admin).Hex(),
			FeeCollector: "0x" + strings.Repeat("0c", 20),
			Treasury:     "0x" + strings.Repeat("0d", 20),
		},
		Tokens: []genesis.TokenSpec{{
			Address:   testToken.Hex(),
			Symbol:    "USDT",
			Name:      "Mock USDT",
			Decimals:  6,
			Minter:    addrOf(env.admin).Hex(),
			Whitelist: true,
		}},
		Alloc: map[string]map[string]string{
			addrOf(env.user).Hex(): {"USDT": "5000000000"},
		},
		Roles: map[string][]string{"merchant": {addrOf(env.merchant).Hex()}},
	}
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		Genesis: spec,
		Logger:  logging.Discard(),
		Now:     func() int64 { return env.clock },
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	env.node = node
	env.server = NewServer(node, logging.Discard(), cfg)
	env.http = httptest.NewServer(env.server.Router())
	t.Cleanup(func() {
		env.http.Close()
		node.Close()
	})
	return env
}

func (e *testEnv) call(method string, token string, params ...interface{}) (int, testResponse) {
	e.t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			e.t.Fatalf("encode params: %v", err)
		}
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: 1})
	if err != nil {
		e.t.Fatalf("encode request: %v", err)
	}
	return e.post(body, token)
}

func (e *testEnv) post(body []byte, token string) (int, testResponse) {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.http.URL, bytes.NewReader(body))
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.http.Client().Do(req)
	if err != nil {
		e.t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out testResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func (e *testEnv) signed(key *ecdsa.PrivateKey, txType types.TxType, payload interface{}) *types.Transaction {
	e.t.Helper()
	nonce, err := e.node.Nonce(addrOf(key))
	if err != nil {
		e.t.Fatalf("nonce: %v", err)
	}
	tx, err := types.NewTransaction(new(big.Int).SetUint64(testChainID), txType, nonce, payload)
	if err != nil {
		e.t.Fatalf("build tx: %v", err)
	}
	if err := tx.Sign(key); err != nil {
		e.t.Fatalf("sign: %v", err)
	}
	return tx
}

func (e *testEnv) send(token string, tx *types.Transaction) *types.Receipt {
	e.t.Helper()
	status, resp := e.call("ledger_sendTransaction", token, tx)
	if status != http.StatusOK || resp.Error != nil {
		e.t.Fatalf("send failed: %d %+v", status, resp.Error)
	}
	var receipt types.Receipt
	if err := json.Unmarshal(resp.Result, &receipt); err != nil {
		e.t.Fatalf("decode receipt: %v", err)
	}
	return &receipt
}

func decodeResult(t *testing.T, resp testResponse, dst interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if err := json.Unmarshal(resp.Result, dst); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}
