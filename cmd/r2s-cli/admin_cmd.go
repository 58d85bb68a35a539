package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
	"r2s/native/campaign"
)

const adminUsage = `Usage: r2s-cli admin <subcommand> --key <keystore> [flags]

  initialize          --fee-collector --treasury [--admin <signer>]
  pause | unpause
  whitelist           --token <addr> [--status=false]
  blacklist           --account <addr> [--status=false]
  fees                --platform <bps> --merchant <bps> --penalty <bps>
  max-discount        --rate <bps>
  fee-addresses       --fee-collector <addr> --treasury <addr>
  status              --campaign <id> --status <draft|pending|active|completed|settling|cancelled>
  verify              --campaign <id>
  emergency-withdraw  --token <addr> --amount <amount>
  grant | revoke      --role <name|hash> --account <addr>
  renounce            --role <name|hash> [--account <addr>]
  set-role-admin      --role <name|hash> --admin-role <name|hash>
  upgrade             --version <label>`

func runAdminCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, adminUsage)
		return 1
	}
	switch args[0] {
	case "initialize":
		return runAdminInitialize(args[1:], stdout, stderr)
	case "pause":
		return runAdminToggle("admin pause", types.TxTypePause, args[1:], stdout, stderr)
	case "unpause":
		return runAdminToggle("admin unpause", types.TxTypeUnpause, args[1:], stdout, stderr)
	case "whitelist":
		return runAdminWhitelist(args[1:], stdout, stderr)
	case "blacklist":
		return runAdminBlacklist(args[1:], stdout, stderr)
	case "fees":
		return runAdminFees(args[1:], stdout, stderr)
	case "max-discount":
		return runAdminMaxDiscount(args[1:], stdout, stderr)
	case "fee-addresses":
		return runAdminFeeAddresses(args[1:], stdout, stderr)
	case "status":
		return runAdminCampaignStatus(args[1:], stdout, stderr)
	case "verify":
		return runAdminVerify(args[1:], stdout, stderr)
	case "emergency-withdraw":
		return runAdminEmergencyWithdraw(args[1:], stdout, stderr)
	case "grant":
		return runAdminRole("admin grant", types.TxTypeGrantRole, args[1:], stdout, stderr)
	case "revoke":
		return runAdminRole("admin revoke", types.TxTypeRevokeRole, args[1:], stdout, stderr)
	case "renounce":
		return runAdminRenounce(args[1:], stdout, stderr)
	case "set-role-admin":
		return runAdminSetRoleAdmin(args[1:], stdout, stderr)
	case "upgrade":
		return runAdminUpgrade(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown admin subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, adminUsage)
		return 1
	}
}

func runAdminInitialize(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin initialize", stderr, adminUsage)
	keyPath := signerFlag(fs)
	adminStr := fs.String("admin", "", "ledger admin address (must be the signer; defaults to it)")
	collectorStr := fs.String("fee-collector", "", "fee collector address")
	treasuryStr := fs.String("treasury", "", "treasury address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	collector, err := parseAddress("fee-collector", *collectorStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	treasury, err := parseAddress("treasury", *treasuryStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := loadSigner(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	admin := key.Address()
	if strings.TrimSpace(*adminStr) != "" {
		parsed, err := parseAddress("admin", *adminStr)
		if err != nil {
			return printError(stderr, err.Error())
		}
		if parsed != admin {
			return printError(stderr, "--admin must match the signing key")
		}
	}
	return submitTx(key, types.TxTypeInitialize, types.InitializePayload{
		Admin:        admin,
		FeeCollector: collector,
		Treasury:     treasury,
	}, stdout, stderr)
}

func runAdminToggle(name string, txType types.TxType, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, adminUsage)
	keyPath := signerFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	return signAndSubmit(*keyPath, txType, nil, stdout, stderr)
}

func runAdminWhitelist(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin whitelist", stderr, adminUsage)
	keyPath := signerFlag(fs)
	tokenStr := fs.String("token", "", "token address")
	status := fs.Bool("status", true, "whitelist (true) or remove (false)")
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
	return signAndSubmit(*keyPath, types.TxTypeWhitelistToken, types.WhitelistTokenPayload{Token: token, Status: *status}, stdout, stderr)
}

func runAdminBlacklist(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin blacklist", stderr, adminUsage)
	keyPath := signerFlag(fs)
	accountStr := fs.String("account", "", "account address")
	status := fs.Bool("status", true, "blacklist (true) or clear (false)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	account, err := parseAddress("account", *accountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeBlacklistAccount, types.BlacklistAccountPayload{Account: account, Status: *status}, stdout, stderr)
}

func runAdminFees(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin fees", stderr, adminUsage)
	keyPath := signerFlag(fs)
	platformStr := fs.String("platform", "", "platform fee in basis points")
	merchantStr := fs.String("merchant", "", "merchant fee in basis points")
	penaltyStr := fs.String("penalty", "", "early withdrawal penalty in basis points")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	platform, err := parseBps("platform", *platformStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	merchant, err := parseBps("merchant", *merchantStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	penalty, err := parseBps("penalty", *penaltyStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeUpdateFees, types.UpdateFeesPayload{
		PlatformFee:          platform,
		MerchantFee:          merchant,
		EarlyWithdrawPenalty: penalty,
	}, stdout, stderr)
}

func runAdminMaxDiscount(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin max-discount", stderr, adminUsage)
	keyPath := signerFlag(fs)
	rateStr := fs.String("rate", "", "maximum discount rate in basis points")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	rate, err := parseBps("rate", *rateStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeUpdateMaxDiscount, types.UpdateMaxDiscountPayload{MaxDiscountRate: rate}, stdout, stderr)
}

func runAdminFeeAddresses(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin fee-addresses", stderr, adminUsage)
	keyPath := signerFlag(fs)
	collectorStr := fs.String("fee-collector", "", "fee collector address")
	treasuryStr := fs.String("treasury", "", "treasury address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	collector, err := parseAddress("fee-collector", *collectorStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	treasury, err := parseAddress("treasury", *treasuryStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeUpdateFeeAddresses, types.UpdateFeeAddressesPayload{FeeCollector: collector, Treasury: treasury}, stdout, stderr)
}

func runAdminCampaignStatus(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin status", stderr, adminUsage)
	keyPath := signerFlag(fs)
	idStr := fs.String("campaign", "", "campaign id")
	statusStr := fs.String("status", "", "new campaign status")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	id, err := parseID("campaign", *idStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(*statusStr) == "" {
		return printError(stderr, "--status is required")
	}
	status, err := campaign.ParseCampaignStatus(*statusStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeUpdateCampaignStatus, types.UpdateCampaignStatusPayload{CampaignID: id, Status: uint8(status)}, stdout, stderr)
}

func runAdminVerify(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin verify", stderr, adminUsage)
	keyPath := signerFlag(fs)
	idStr := fs.String("campaign", "", "campaign id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	id, err := parseID("campaign", *idStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeVerifyCampaign, types.CampaignIDPayload{CampaignID: id}, stdout, stderr)
}

func runAdminEmergencyWithdraw(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin emergency-withdraw", stderr, adminUsage)
	keyPath := signerFlag(fs)
	tokenStr := fs.String("token", "", "token address")
	amountStr := fs.String("amount", "", "amount to withdraw from escrow")
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
	amount, err := parseAmount("amount", *amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeEmergencyWithdraw, types.EmergencyWithdrawPayload{Token: token, Amount: amount}, stdout, stderr)
}

func runAdminRole(name string, txType types.TxType, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, adminUsage)
	keyPath := signerFlag(fs)
	roleStr := fs.String("role", "", "role name or 32-byte hash")
	accountStr := fs.String("account", "", "account address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	role, err := parseRoleFlag("role", *roleStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	account, err := parseAddress("account", *accountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, txType, types.RolePayload{Role: role, Account: account}, stdout, stderr)
}

// runAdminRenounce defaults --account to the signer.
func runAdminRenounce(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin renounce", stderr, adminUsage)
	keyPath := signerFlag(fs)
	roleStr := fs.String("role", "", "role name or 32-byte hash")
	accountStr := fs.String("account", "", "account renouncing the role (defaults to the signer)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	role, err := parseRoleFlag("role", *roleStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := loadSigner(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	account := key.Address()
	if strings.TrimSpace(*accountStr) != "" {
		if account, err = parseAddress("account", *accountStr); err != nil {
			return printError(stderr, err.Error())
		}
	}
	return submitTx(key, types.TxTypeRenounceRole, types.RolePayload{Role: role, Account: account}, stdout, stderr)
}

func runAdminSetRoleAdmin(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin set-role-admin", stderr, adminUsage)
	keyPath := signerFlag(fs)
	roleStr := fs.String("role", "", "role name or 32-byte hash")
	adminRoleStr := fs.String("admin-role", "", "role administering --role")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	role, err := parseRoleFlag("role", *roleStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	adminRole, err := parseRoleFlag("admin-role", *adminRoleStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeSetRoleAdmin, types.SetRoleAdminPayload{Role: role, AdminRole: adminRole}, stdout, stderr)
}

func runAdminUpgrade(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin upgrade", stderr, adminUsage)
	keyPath := signerFlag(fs)
	version := fs.String("version", "", "implementation version label")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	if strings.TrimSpace(*version) == "" {
		return printError(stderr, "--version is required")
	}
	return signAndSubmit(*keyPath, types.TxTypeUpgradeTo, types.UpgradeToPayload{Version: strings.TrimSpace(*version)}, stdout, stderr)
}

func parseRoleFlag(flagName, value string) (common.Hash, error) {
	if strings.TrimSpace(value) == "" {
		return common.Hash{}, fmt.Errorf("--%s is required", flagName)
	}
	role, err := campaign.ParseRole(strings.TrimSpace(value))
	if err != nil {
		return common.Hash{}, fmt.Errorf("--%s: %v", flagName, err)
	}
	return role, nil
}
