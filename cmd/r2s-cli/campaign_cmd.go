package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"r2s/core/types"
)

const campaignUsage = `Usage: r2s-cli campaign <subcommand> --key <keystore> [flags]

  create             --title --token --target --min --max --rate --duration --settlement-period
  participate        --campaign <id> --amount <amount>
  batch-participate  --campaign <id> --participants <a,b,...> --amounts <x,y,...>
  settle             --campaign <id>
  refund             --participation <id>
  batch-refund       --participations <id,id,...>`

func runCampaignCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, campaignUsage)
		return 1
	}
	switch args[0] {
	case "create":
		return runCampaignCreate(args[1:], stdout, stderr)
	case "participate":
		return runCampaignParticipate(args[1:], stdout, stderr)
	case "batch-participate":
		return runCampaignBatchParticipate(args[1:], stdout, stderr)
	case "settle":
		return runCampaignSettle(args[1:], stdout, stderr)
	case "refund":
		return runCampaignRefund(args[1:], stdout, stderr)
	case "batch-refund":
		return runCampaignBatchRefund(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown campaign subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, campaignUsage)
		return 1
	}
}

func runCampaignCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign create", stderr, campaignUsage)
	keyPath := signerFlag(fs)
	var (
		title, description, image string
		tokenStr                  string
		targetStr, minStr, maxStr string
		rateStr                   string
		durationStr, periodStr    string
	)
	fs.StringVar(&title, "title", "", "campaign title")
	fs.StringVar(&description, "description", "", "campaign description")
	fs.StringVar(&image, "image", "", "campaign image URL")
	fs.StringVar(&tokenStr, "token", "", "whitelisted deposit token address")
	fs.StringVar(&targetStr, "target", "", "target amount in the token's smallest unit")
	fs.StringVar(&minStr, "min", "", "minimum deposit")
	fs.StringVar(&maxStr, "max", "", "maximum deposit per participation")
	fs.StringVar(&rateStr, "rate", "", "discount rate in basis points")
	fs.StringVar(&durationStr, "duration", "", "campaign duration (seconds or Go duration such as 720h)")
	fs.StringVar(&periodStr, "settlement-period", "", "settlement period (seconds or Go duration)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	if strings.TrimSpace(title) == "" {
		return printError(stderr, "--title is required")
	}
	token, err := parseAddress("token", tokenStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	target, err := parseAmount("target", targetStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	minDeposit, err := parseAmount("min", minStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	maxDeposit, err := parseAmount("max", maxStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	rate, err := parseBps("rate", rateStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	duration, err := parseSeconds("duration", durationStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	period, err := parseSeconds("settlement-period", periodStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeCreateCampaign, types.CreateCampaignPayload{
		Title:            strings.TrimSpace(title),
		Description:      description,
		ImageURL:         image,
		Token:            token,
		TargetAmount:     target,
		MinDeposit:       minDeposit,
		MaxDeposit:       maxDeposit,
		DiscountRate:     rate,
		Duration:         duration,
		SettlementPeriod: period,
	}, stdout, stderr)
}

func runCampaignParticipate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign participate", stderr, campaignUsage)
	keyPath := signerFlag(fs)
	idStr := fs.String("campaign", "", "campaign id")
	amountStr := fs.String("amount", "", "deposit amount")
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
	amount, err := parseAmount("amount", *amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeParticipate, types.ParticipatePayload{CampaignID: id, Amount: amount}, stdout, stderr)
}

func runCampaignBatchParticipate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign batch-participate", stderr, campaignUsage)
	keyPath := signerFlag(fs)
	idStr := fs.String("campaign", "", "campaign id")
	participantsStr := fs.String("participants", "", "comma separated participant addresses")
	amountsStr := fs.String("amounts", "", "comma separated deposit amounts")
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
	participants, err := parseAddressList("participants", *participantsStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amounts, err := parseAmountList("amounts", *amountsStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if len(participants) != len(amounts) {
		return printError(stderr, "--participants and --amounts must have the same length")
	}
	return signAndSubmit(*keyPath, types.TxTypeBatchParticipate, types.BatchParticipatePayload{
		CampaignID:   id,
		Participants: participants,
		Amounts:      amounts,
	}, stdout, stderr)
}

func runCampaignSettle(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign settle", stderr, campaignUsage)
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
	return signAndSubmit(*keyPath, types.TxTypeSettleCampaign, types.CampaignIDPayload{CampaignID: id}, stdout, stderr)
}

func runCampaignRefund(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign refund", stderr, campaignUsage)
	keyPath := signerFlag(fs)
	idStr := fs.String("participation", "", "participation id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	id, err := parseID("participation", *idStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeRefund, types.RefundPayload{ParticipationID: id}, stdout, stderr)
}

func runCampaignBatchRefund(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign batch-refund", stderr, campaignUsage)
	keyPath := signerFlag(fs)
	idsStr := fs.String("participations", "", "comma separated participation ids")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	ids, err := parseIDList("participations", *idsStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSubmit(*keyPath, types.TxTypeBatchRefund, types.BatchRefundPayload{ParticipationIDs: ids}, stdout, stderr)
}

// parseSeconds accepts a plain number of seconds or a Go duration string.
func parseSeconds(flagName, value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("--%s is required", flagName)
	}
	if secs, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
		return secs, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("--%s must be seconds or a duration such as 720h", flagName)
	}
	return uint64(d / time.Second), nil
}
