package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type paramKind int

const (
	paramID paramKind = iota
	paramAddress
	paramHash
	paramText
	paramInt
)

// queryParam maps a CLI flag onto a field of the RPC parameter object.
type queryParam struct {
	flag     string
	field    string
	kind     paramKind
	optional bool
	help     string
}

type querySpec struct {
	method string
	params []queryParam
}

var querySpecs = map[string]querySpec{
	"status":  {method: "ledger_status"},
	"tokens":  {method: "token_list"},
	"receipt": {method: "ledger_getReceipt", params: []queryParam{{flag: "hash", field: "txHash", kind: paramHash, help: "transaction hash"}}},
	"nonce":   {method: "ledger_nonce", params: []queryParam{{flag: "address", field: "address", kind: paramAddress, help: "account address"}}},
	"events": {method: "ledger_events", params: []queryParam{
		{flag: "from", field: "from", kind: paramInt, optional: true, help: "first event sequence"},
		{flag: "limit", field: "limit", kind: paramInt, optional: true, help: "maximum events returned"},
		{flag: "type", field: "type", kind: paramText, optional: true, help: "event type filter"},
	}},
	"campaign":       {method: "campaign_get", params: []queryParam{{flag: "id", field: "campaignId", kind: paramID, help: "campaign id"}}},
	"participation":  {method: "campaign_participation", params: []queryParam{{flag: "id", field: "participationId", kind: paramID, help: "participation id"}}},
	"participations": {method: "campaign_participations", params: []queryParam{{flag: "campaign", field: "campaignId", kind: paramID, help: "campaign id"}}},
	"user":           {method: "campaign_userParticipations", params: []queryParam{{flag: "address", field: "address", kind: paramAddress, help: "participant address"}}},
	"merchant":       {method: "campaign_merchantCampaigns", params: []queryParam{{flag: "address", field: "address", kind: paramAddress, help: "merchant address"}}},
	"stats":          {method: "campaign_stats", params: []queryParam{{flag: "campaign", field: "campaignId", kind: paramID, help: "campaign id"}}},
	"active":         {method: "campaign_isActive", params: []queryParam{{flag: "campaign", field: "campaignId", kind: paramID, help: "campaign id"}}},
	"deposit": {method: "campaign_userDeposit", params: []queryParam{
		{flag: "campaign", field: "campaignId", kind: paramID, help: "campaign id"},
		{flag: "user", field: "user", kind: paramAddress, help: "participant address"},
	}},
	"has-role": {method: "campaign_hasRole", params: []queryParam{
		{flag: "role", field: "role", kind: paramText, help: "role name or hash"},
		{flag: "account", field: "account", kind: paramAddress, help: "account address"},
	}},
	"role-admin":  {method: "campaign_roleAdmin", params: []queryParam{{flag: "role", field: "role", kind: paramText, help: "role name or hash"}}},
	"whitelisted": {method: "campaign_isWhitelisted", params: []queryParam{{flag: "token", field: "token", kind: paramAddress, help: "token address"}}},
	"blacklisted": {method: "campaign_isBlacklisted", params: []queryParam{{flag: "address", field: "address", kind: paramAddress, help: "account address"}}},
	"balance": {method: "token_balance", params: []queryParam{
		{flag: "token", field: "token", kind: paramAddress, help: "token address"},
		{flag: "account", field: "account", kind: paramAddress, help: "account address"},
	}},
	"allowance": {method: "token_allowance", params: []queryParam{
		{flag: "token", field: "token", kind: paramAddress, help: "token address"},
		{flag: "owner", field: "owner", kind: paramAddress, help: "owner address"},
		{flag: "spender", field: "spender", kind: paramAddress, help: "spender address"},
	}},
}

func queryUsage() string {
	names := make([]string, 0, len(querySpecs))
	for name := range querySpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Usage: r2s-cli query <subcommand> [flags]\n\n")
	for _, name := range names {
		spec := querySpecs[name]
		fmt.Fprintf(&b, "  %-15s", name)
		for _, p := range spec.params {
			if p.optional {
				fmt.Fprintf(&b, " [--%s]", p.flag)
			} else {
				fmt.Fprintf(&b, " --%s", p.flag)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func runQueryCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, queryUsage())
		return 1
	}
	spec, ok := querySpecs[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown query subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, queryUsage())
		return 1
	}
	fs := newFlagSet("query "+args[0], stderr, queryUsage())
	values := make([]*string, len(spec.params))
	for i, p := range spec.params {
		values[i] = fs.String(p.flag, "", p.help)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}

	params := make(map[string]interface{}, len(spec.params))
	for i, p := range spec.params {
		raw := strings.TrimSpace(*values[i])
		if raw == "" {
			if p.optional {
				continue
			}
			return printError(stderr, fmt.Sprintf("--%s is required", p.flag))
		}
		value, err := convertQueryParam(p, raw)
		if err != nil {
			return printError(stderr, err.Error())
		}
		params[p.field] = value
	}
	var call interface{}
	if len(params) > 0 {
		call = params
	}
	result, err := rpcCall(spec.method, call, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return printJSON(stdout, result)
}

func convertQueryParam(p queryParam, raw string) (interface{}, error) {
	switch p.kind {
	case paramID:
		return parseID(p.flag, raw)
	case paramAddress:
		addr, err := parseAddress(p.flag, raw)
		if err != nil {
			return nil, err
		}
		return addr.Hex(), nil
	case paramHash:
		hexPart := strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
		if len(hexPart) != 64 || !isHex(hexPart) {
			return nil, fmt.Errorf("--%s must be a 0x-prefixed 32-byte hash", p.flag)
		}
		return common.HexToHash(raw).Hex(), nil
	case paramInt:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--%s must be a non-negative integer", p.flag)
		}
		return v, nil
	default:
		return raw, nil
	}
}

func isHex(value string) bool {
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
