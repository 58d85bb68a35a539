package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter(&buf, "r2sd", "test", "debug")
	logger.Debug("applied transaction", "tx_type", "participate", MaskField("passphrase", "hunter2"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "applied transaction" {
		t.Fatalf("unexpected message %v", line["message"])
	}
	if line["severity"] != "DEBUG" {
		t.Fatalf("unexpected severity %v", line["severity"])
	}
	if line["service"] != "r2sd" || line["env"] != "test" {
		t.Fatalf("missing service attributes: %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", line)
	}
	if line["passphrase"] != RedactedValue {
		t.Fatalf("expected passphrase to be redacted, got %v", line["passphrase"])
	}
	if line["tx_type"] != "participate" {
		t.Fatalf("unexpected tx_type %v", line["tx_type"])
	}
}

func TestSetupRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter(&buf, "r2sd", "", "warn")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info record should be filtered: %s", buf.String())
	}
	logger.Warn("shown")
	if buf.Len() == 0 {
		t.Fatalf("warn record missing")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("rpc_token", "secret"); attr.Value.String() != RedactedValue {
		t.Fatalf("expected redaction, got %s", attr.Value.String())
	}
	if attr := MaskField("Sender", "0xabc"); attr.Value.String() != "0xabc" {
		t.Fatalf("allowlisted key should pass through, got %s", attr.Value.String())
	}
	if attr := MaskField("rpc_token", " "); attr.Value.String() != " " {
		t.Fatalf("empty values should pass through")
	}
	if attr := MaskField("campaign_id", "7"); attr.Value.String() != "7" {
		t.Fatalf("campaign ids are public, got %s", attr.Value.String())
	}
	if IsPublic("auth_token") {
		t.Fatalf("auth_token must be redacted")
	}
}
