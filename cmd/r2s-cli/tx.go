package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"r2s/cmd/internal/passphrase"
	"r2s/core"
	"r2s/core/types"
	"r2s/crypto"
)

const (
	keystorePassEnv = "R2S_KEYSTORE_PASS"
	keyPathEnv      = "R2S_KEY"
)

// passphraseFor is swapped out in tests.
var passphraseFor = func(confirm bool) func() (string, error) {
	source := passphrase.NewSource(keystorePassEnv)
	if confirm {
		source = source.WithConfirmation()
	}
	return source.Get
}

func newFlagSet(name string, stderr io.Writer, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	return fs
}

// signerFlag registers --key on fs, defaulting to $R2S_KEY.
func signerFlag(fs *flag.FlagSet) *string {
	return fs.String("key", strings.TrimSpace(os.Getenv(keyPathEnv)), "keystore file of the signing account")
}

func loadSigner(path string) (*crypto.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--key is required (or set %s)", keyPathEnv)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s not found; run r2s-cli keys generate first", path)
		}
		return nil, err
	}
	pass, err := passphraseFor(false)()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock keystore %s: %w", path, err)
	}
	return key, nil
}

func fetchStatus() (*core.LedgerStatus, error) {
	raw, err := rpcCall("ledger_status", nil, false)
	if err != nil {
		return nil, err
	}
	var status core.LedgerStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode ledger status: %w", err)
	}
	if status.ChainID == nil {
		return nil, fmt.Errorf("ledger status did not include a chain id")
	}
	return &status, nil
}

func fetchNonce(addr common.Address) (uint64, error) {
	raw, err := rpcCall("ledger_nonce", map[string]string{"address": addr.Hex()}, false)
	if err != nil {
		return 0, err
	}
	var result struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decode nonce: %w", err)
	}
	return result.Nonce, nil
}

// submitTx signs payload as txType with the next nonce of key and prints the
// receipt. A receipt with a failed status yields exit code 1.
func submitTx(key *crypto.PrivateKey, txType types.TxType, payload interface{}, stdout, stderr io.Writer) int {
	status, err := fetchStatus()
	if err != nil {
		return printError(stderr, err.Error())
	}
	nonce, err := fetchNonce(key.Address())
	if err != nil {
		return printError(stderr, err.Error())
	}
	tx, err := types.NewTransaction(status.ChainID, txType, nonce, payload)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return printError(stderr, fmt.Sprintf("sign transaction: %v", err))
	}
	raw, err := rpcCall("ledger_sendTransaction", tx, true)
	if err != nil {
		return printError(stderr, err.Error())
	}
	var receipt types.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return printError(stderr, fmt.Sprintf("decode receipt: %v", err))
	}
	printJSON(stdout, raw)
	if !receipt.Succeeded() {
		fmt.Fprintf(stderr, "Transaction %s failed: %s\n", receipt.TxHash.Hex(), receipt.Reason)
		return 1
	}
	return 0
}

// signAndSubmit loads the keystore at keyPath and submits the transaction.
func signAndSubmit(keyPath string, txType types.TxType, payload interface{}, stdout, stderr io.Writer) int {
	key, err := loadSigner(keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submitTx(key, txType, payload, stdout, stderr)
}

func parseAddress(flagName, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("--%s is required", flagName)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("--%s must be a 0x-prefixed 20-byte address", flagName)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAddressList(flagName, value string) ([]common.Address, error) {
	parts := splitList(value)
	if len(parts) == 0 {
		return nil, fmt.Errorf("--%s is required", flagName)
	}
	out := make([]common.Address, 0, len(parts))
	for _, part := range parts {
		addr, err := parseAddress(flagName, part)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// parseAmount accepts a non-negative integer in the token's smallest unit.
// Underscores are ignored and a trailing exponent such as 100e6 is expanded.
func parseAmount(flagName, value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return nil, fmt.Errorf("--%s is required", flagName)
	}
	base := trimmed
	exponent := int64(0)
	if idx := strings.IndexAny(trimmed, "eE"); idx != -1 {
		base = trimmed[:idx]
		exp, err := strconv.ParseInt(trimmed[idx+1:], 10, 32)
		if err != nil || exp < 0 || exp > 77 {
			return nil, fmt.Errorf("--%s has an invalid exponent", flagName)
		}
		exponent = exp
	}
	amount, ok := new(big.Int).SetString(base, 10)
	if !ok {
		return nil, fmt.Errorf("--%s must be an integer amount", flagName)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("--%s must not be negative", flagName)
	}
	if exponent > 0 {
		amount.Mul(amount, new(big.Int).Exp(big.NewInt(10), big.NewInt(exponent), nil))
	}
	return amount, nil
}

func parseAmountList(flagName, value string) ([]*big.Int, error) {
	parts := splitList(value)
	if len(parts) == 0 {
		return nil, fmt.Errorf("--%s is required", flagName)
	}
	out := make([]*big.Int, 0, len(parts))
	for _, part := range parts {
		amount, err := parseAmount(flagName, part)
		if err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, nil
}

func parseID(flagName, value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("--%s is required", flagName)
	}
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s must be a non-negative integer", flagName)
	}
	return id, nil
}

func parseIDList(flagName, value string) ([]uint64, error) {
	parts := splitList(value)
	if len(parts) == 0 {
		return nil, fmt.Errorf("--%s is required", flagName)
	}
	out := make([]uint64, 0, len(parts))
	for _, part := range parts {
		id, err := parseID(flagName, part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func parseBps(flagName, value string) (uint32, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("--%s is required", flagName)
	}
	bps, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("--%s must be a non-negative integer", flagName)
	}
	if bps > 10_000 {
		return 0, fmt.Errorf("--%s must be <= 10000", flagName)
	}
	return uint32(bps), nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func rejectPositional(fs *flag.FlagSet, stderr io.Writer) bool {
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected positional arguments: %s\n", strings.Join(fs.Args(), " "))
		return true
	}
	return false
}
