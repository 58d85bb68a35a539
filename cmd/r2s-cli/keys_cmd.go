package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"r2s/crypto"
)

const keysUsage = `Usage: r2s-cli keys <generate|import|address> [flags]

  generate --dir <keystore dir>               create a new encrypted key
  import   --dir <keystore dir> --hex <key>   encrypt an existing private key
  address  --key <keystore file>              print the address of a keystore`

func runKeysCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, keysUsage)
		return 1
	}
	switch args[0] {
	case "generate":
		return runKeysGenerate(args[1:], stdout, stderr)
	case "import":
		return runKeysImport(args[1:], stdout, stderr)
	case "address":
		return runKeysAddress(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown keys subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, keysUsage)
		return 1
	}
}

func runKeysGenerate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keys generate", stderr, keysUsage)
	dir := fs.String("dir", "./keystore", "directory receiving the keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeKeystore(*dir, key, stdout, stderr)
}

func runKeysImport(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keys import", stderr, keysUsage)
	dir := fs.String("dir", "./keystore", "directory receiving the keystore file")
	hexKey := fs.String("hex", "", "hex-encoded secp256k1 private key")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	if strings.TrimSpace(*hexKey) == "" {
		return printError(stderr, "--hex is required")
	}
	key, err := crypto.PrivateKeyFromHex(*hexKey)
	if err != nil {
		return printError(stderr, fmt.Sprintf("invalid private key: %v", err))
	}
	return writeKeystore(*dir, key, stdout, stderr)
}

func writeKeystore(dir string, key *crypto.PrivateKey, stdout, stderr io.Writer) int {
	pass, err := passphraseFor(true)()
	if err != nil {
		return printError(stderr, err.Error())
	}
	path := crypto.KeystorePath(dir, key.Address())
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		return printError(stderr, fmt.Sprintf("write keystore: %v", err))
	}
	fmt.Fprintf(stdout, "Address:  %s\n", key.Address().Hex())
	fmt.Fprintf(stdout, "Keystore: %s\n", path)
	return 0
}

// runKeysAddress reads the address field of the keystore without unlocking it.
func runKeysAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keys address", stderr, keysUsage)
	keyPath := signerFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	if strings.TrimSpace(*keyPath) == "" {
		return printError(stderr, "--key is required")
	}
	data, err := os.ReadFile(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	var header struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return printError(stderr, fmt.Sprintf("decode keystore: %v", err))
	}
	if !common.IsHexAddress(header.Address) {
		return printError(stderr, "keystore does not record an address")
	}
	fmt.Fprintln(stdout, common.HexToAddress(header.Address).Hex())
	return 0
}
