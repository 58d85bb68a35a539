package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =x,tenant=r2s")
	if len(got) != 2 || got["api-key"] != "abc" || got["tenant"] != "r2s" {
		t.Fatalf("unexpected headers %v", got)
	}
}

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{
		EndpointEnv: " collector:4318 ",
		HeadersEnv:  "x-token=1",
		InsecureEnv: "true",
	}
	cfg := ConfigFromEnv("r2sd", "dev", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if !cfg.Enabled() || cfg.Endpoint != "collector:4318" || !cfg.Insecure {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Headers["x-token"] != "1" {
		t.Fatalf("unexpected headers %v", cfg.Headers)
	}

	empty := ConfigFromEnv("r2sd", "dev", func(string) (string, bool) { return "", false })
	if empty.Enabled() {
		t.Fatalf("expected telemetry disabled without endpoint")
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "r2sd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
