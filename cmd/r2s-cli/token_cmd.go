package main

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
)

const tokenUsage = `Usage: r2s-cli token <subcommand> --key <keystore> --token <addr> [flags]

  transfer       --to <addr> --amount <amount>
  approve        --spender <addr> --amount <amount>
  transfer-from  --from <addr> --to <addr> --amount <amount>
  mint           --to <addr> --amount <amount>
  batch-mint     --recipients <a,b,...> --amounts <x,y,...>
  burn           --amount <amount>
  burn-from      --account <addr> --amount <amount>
  register       --symbol <sym> [--name <name>] [--decimals 6] [--minter <addr>]   (ledger admin)`

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, tokenUsage)
		return 1
	}
	switch args[0] {
	case "transfer":
		return runTokenTransfer(args[1:], stdout, stderr)
	case "approve":
		return runTokenApprove(args[1:], stdout, stderr)
	case "transfer-from":
		return runTokenTransferFrom(args[1:], stdout, stderr)
	case "mint":
		return runTokenMint(args[1:], stdout, stderr)
	case "batch-mint":
		return runTokenBatchMint(args[1:], stdout, stderr)
	case "burn":
		return runTokenBurn(args[1:], stdout, stderr)
	case "burn-from":
		return runTokenBurnFrom(args[1:], stdout, stderr)
	case "register":
		return runTokenRegister(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown token subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, tokenUsage)
		return 1
	}
}

// tokenFlags holds the flags shared by every token subcommand.
type tokenFlags struct {
	key    *string
	token  *string
	amount *string
}

func newTokenFlags(name string, stderr io.Writer) (*tokenFlags, func([]string) bool, func(string) *string) {
	fs := newFlagSet(name, stderr, tokenUsage)
	tf := &tokenFlags{
		key:    signerFlag(fs),
		token:  fs.String("token", "", "token address"),
		amount: fs.String("amount", "", "amount in the token's smallest unit"),
	}
	parse := func(args []string) bool {
		if err := fs.Parse(args); err != nil {
			return false
		}
		return !rejectPositional(fs, stderr)
	}
	str := func(flagName string) *string {
		return fs.String(flagName, "", flagName+" address")
	}
	return tf, parse, str
}

func (tf *tokenFlags) resolve() (common.Address, *big.Int, error) {
	token, err := parseAddress("token", *tf.token)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := parseAmount("amount", *tf.amount)
	if err != nil {
		return common.Address{}, nil, err
	}
	return token, amount, nil
}

func runTokenTransfer(args []string, stdout, stderr io.Writer) int {
	tf, parse, str := newTokenFlags("token transfer", stderr)
	toStr := str("to")
	if !parse(args) {
		return 1
	}
	token, amount, err := tf.resolve()
	if err != nil {
		return printError(stderr, err.Error())
	}
	to, err := parseAddress("to", *toStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*tf.key, types.TxTypeTokenTransfer, types.TokenTransferPayload{Token: token, To: to, Amount: amount}, stdout, stderr)
}

func runTokenApprove(args []string, stdout, stderr io.Writer) int {
	tf, parse, str := newTokenFlags("token approve", stderr)
	spenderStr := str("spender")
	if !parse(args) {
		return 1
	}
	token, amount, err := tf.resolve()
	if err != nil {
		return printError(stderr, err.Error())
	}
	spender, err := parseAddress("spender", *spenderStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*tf.key, types.TxTypeTokenApprove, types.TokenApprovePayload{Token: token, Spender: spender, Amount: amount}, stdout, stderr)
}

func runTokenTransferFrom(args []string, stdout, stderr io.Writer) int {
	tf, parse, str := newTokenFlags("token transfer-from", stderr)
	fromStr := str("from")
	toStr := str("to")
	if !parse(args) {
		return 1
	}
	token, amount, err := tf.resolve()
	if err != nil {
		return printError(stderr, err.Error())
	}
	from, err := parseAddress("from", *fromStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	to, err := parseAddress("to", *toStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*tf.key, types.TxTypeTokenTransferFrom, types.TokenTransferFromPayload{Token: token, From: from, To: to, Amount: amount}, stdout, stderr)
}

func runTokenMint(args []string, stdout, stderr io.Writer) int {
	tf, parse, str := newTokenFlags("token mint", stderr)
	toStr := str("to")
	if !parse(args) {
		return 1
	}
	token, amount, err := tf.resolve()
	if err != nil {
		return printError(stderr, err.Error())
	}
	to, err := parseAddress("to", *toStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*tf.key, types.TxTypeTokenMint, types.TokenMintPayload{Token: token, To: to, Amount: amount}, stdout, stderr)
}

func runTokenBatchMint(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token batch-mint", stderr, tokenUsage)
	keyPath := signerFlag(fs)
	tokenStr := fs.String("token", "", "token address")
	recipientsStr := fs.String("recipients", "", "comma separated recipient addresses")
	amountsStr := fs.String("amounts", "", "comma separated amounts")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	token, err := parseAddress("token", *tokenStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	recipients, err := parseAddressList("recipients", *recipientsStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amounts, err := parseAmountList("amounts", *amountsStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if len(recipients) != len(amounts) {
		return printError(stderr, "--recipients and --amounts must have the same length")
	}
	return signAndSubmit(*keyPath, types.TxTypeTokenBatchMint, types.TokenBatchMintPayload{Token: token, Recipients: recipients, Amounts: amounts}, stdout, stderr)
}

func runTokenBurn(args []string, stdout, stderr io.Writer) int {
	tf, parse, _ := newTokenFlags("token burn", stderr)
	if !parse(args) {
		return 1
	}
	token, amount, err := tf.resolve()
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*tf.key, types.TxTypeTokenBurn, types.TokenBurnPayload{Token: token, Amount: amount}, stdout, stderr)
}

func runTokenBurnFrom(args []string, stdout, stderr io.Writer) int {
	tf, parse, str := newTokenFlags("token burn-from", stderr)
	accountStr := str("account")
	if !parse(args) {
		return 1
	}
	token, amount, err := tf.resolve()
	if err != nil {
		return printError(stderr, err.Error())
	}
	account, err := parseAddress("account", *accountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*tf.key, types.TxTypeTokenBurnFrom, types.TokenBurnFromPayload{Token: token, Account: account, Amount: amount}, stdout, stderr)
}

func runTokenRegister(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token register", stderr, tokenUsage)
	keyPath := signerFlag(fs)
	tokenStr := fs.String("token", "", "token address")
	name := fs.String("name", "", "token name")
	symbol := fs.String("symbol", "", "token symbol")
	decimals := fs.Uint("decimals", 6, "token decimals")
	minterStr := fs.String("minter", "", "account allowed to mint (optional)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	token, err := parseAddress("token", *tokenStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(*symbol) == "" {
		return printError(stderr, "--symbol is required")
	}
	if *decimals == 0 || *decimals > 18 {
		return printError(stderr, "--decimals must be between 1 and 18")
	}
	var minter common.Address
	if strings.TrimSpace(*minterStr) != "" {
		if minter, err = parseAddress("minter", *minterStr); err != nil {
			return printError(stderr, err.Error())
		}
	}
	return signAndSubmit(*keyPath, types.TxTypeTokenRegister, types.TokenRegisterPayload{
		Token:    token,
		Name:     strings.TrimSpace(*name),
		Symbol:   strings.TrimSpace(*symbol),
		Decimals: uint8(*decimals),
		Minter:   minter,
	}, stdout, stderr)
}
