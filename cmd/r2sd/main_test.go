package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"r2s/config"
	"r2s/core"
	"r2s/observability/logging"
	"r2s/storage"
)

func TestResolveGenesisPathPrecedence(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key != genesisPathEnv {
			t.Fatalf("unexpected lookup key: %s", key)
		}
		return "env-path", true
	}

	t.Run("cli flag takes precedence", func(t *testing.T) {
		if path := resolveGenesisPath("cli-path", "cfg-path", lookup); path != "cli-path" {
			t.Fatalf("unexpected path: got %q want %q", path, "cli-path")
		}
	})

	t.Run("environment overrides config", func(t *testing.T) {
		if path := resolveGenesisPath("", "cfg-path", lookup); path != "env-path" {
			t.Fatalf("unexpected path: got %q want %q", path, "env-path")
		}
	})

	t.Run("config used when no other sources", func(t *testing.T) {
		emptyLookup := func(string) (string, bool) { return "", false }
		if path := resolveGenesisPath("", "cfg-path", emptyLookup); path != "cfg-path" {
			t.Fatalf("unexpected path: got %q want %q", path, "cfg-path")
		}
	})
}

func TestResolveGenesisPathTrimsValues(t *testing.T) {
	blankLookup := func(string) (string, bool) { return "  \t ", true }
	if path := resolveGenesisPath("", " cfg ", blankLookup); path != "cfg" {
		t.Fatalf("expected trimmed config path, got %q", path)
	}
	if path := resolveGenesisPath("", "", nil); path != "" {
		t.Fatalf("expected empty path, got %q", path)
	}
}

func TestServerConfigConvertsSeconds(t *testing.T) {
	t.Setenv("R2S_RPC_TOKEN", " secret ")
	cfg := config.Default()
	cfg.RPC.AllowedOrigins = []string{"https://app.example"}

	sc := serverConfig(cfg)
	if sc.AuthToken != "secret" {
		t.Fatalf("unexpected auth token %q", sc.AuthToken)
	}
	if sc.ReadTimeout != 15*time.Second || sc.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts: read=%s header=%s", sc.ReadTimeout, sc.ReadHeaderTimeout)
	}
	if sc.IdleTimeout != time.Minute {
		t.Fatalf("unexpected idle timeout %s", sc.IdleTimeout)
	}
	if sc.RateLimitPerMinute != 600 || sc.RateLimitBurst != 60 {
		t.Fatalf("unexpected rate limit %v/%d", sc.RateLimitPerMinute, sc.RateLimitBurst)
	}
	cfg.RPC.AllowedOrigins[0] = "mutated"
	if sc.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("allowed origins must be copied")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	cfg := config.Default()
	node, err := core.NewNode(storage.NewMemDB(), core.Options{ChainID: cfg.ChainID, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	defer node.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, logging.Discard(), node, cfg, listener)
	}()

	url := fmt.Sprintf("http://%s/healthz", listener.Addr().String())
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became healthy: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop after cancel")
	}
}
