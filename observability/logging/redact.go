package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// Keys that carry public ledger data and are always logged verbatim.
var publicKeys = map[string]struct{}{
	"service":          {},
	"env":              {},
	"error":            {},
	"reason":           {},
	"request_id":       {},
	"tx_hash":          {},
	"tx_type":          {},
	"sender":           {},
	"address":          {},
	"token":            {},
	"campaign_id":      {},
	"participation_id": {},
}

// IsPublic reports whether values logged under key skip redaction.
func IsPublic(key string) bool {
	_, ok := publicKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField builds an attribute that hides value unless key is public.
// Blank values pass through so missing secrets stay visible as such.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsPublic(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
