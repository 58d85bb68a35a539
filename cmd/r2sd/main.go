package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"r2s/config"
	"r2s/core"
	"r2s/observability"
	"r2s/observability/logging"
	telemetry "r2s/observability/otel"
	"r2s/rpc"
	"r2s/storage"
)

const (
	genesisPathEnv  = "R2S_GENESIS"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides R2S_GENESIS and config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "r2sd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.GenesisFile = resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv)

	logger := logging.Setup("r2sd", cfg.Env, cfg.LogLevel)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("r2sd", cfg.Env, os.LookupEnv))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	spec, err := cfg.GenesisSpec()
	if err != nil {
		return fmt.Errorf("resolve genesis: %w", err)
	}
	deployer := cfg.DeployerAddress()
	switch {
	case spec != nil:
	case deployer != (common.Address{}):
		logger.Info("no genesis configured; ledger waits for an initialize transaction", slog.String("deployer", deployer.Hex()))
	default:
		logger.Warn("no genesis or Deployer configured; any account may initialize the ledger")
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	node, err := core.NewNode(db, core.Options{
		ChainID:  cfg.ChainID,
		Genesis:  spec,
		Deployer: deployer,
		Logger:   logger,
		Metrics:  observability.Ledger(),
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("create node: %w", err)
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RPCAddress, err)
	}
	return serve(ctx, logger, node, cfg, listener)
}

// serve runs the JSON-RPC server, and the optional metrics listener, until ctx
// is cancelled or a listener fails.
func serve(ctx context.Context, logger *slog.Logger, node *core.Node, cfg *config.Config, listener net.Listener) error {
	rpcServer := rpc.NewServer(node, logger, serverConfig(cfg))

	errCh := make(chan error, 2)
	go func() {
		errCh <- rpcServer.Serve(listener)
	}()

	var metricsServer *http.Server
	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("starting metrics listener", slog.String("address", addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics listener: %w", err)
			}
		}()
	}

	logger.Info("r2s ledger running",
		slog.Uint64("chain_id", node.ChainID().Uint64()),
		slog.String("rpc_address", listener.Addr().String()))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("server terminated", slog.Any("error", runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown", slog.Any("error", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown", slog.Any("error", err))
		}
	}
	return runErr
}

func serverConfig(cfg *config.Config) rpc.ServerConfig {
	return rpc.ServerConfig{
		AuthToken:          cfg.AuthToken(),
		RateLimitPerMinute: float64(cfg.RPC.RateLimitPerMinute),
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		ReadHeaderTimeout:  time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		ReadTimeout:        time.Duration(cfg.RPC.ReadTimeout) * time.Second,
		WriteTimeout:       time.Duration(cfg.RPC.WriteTimeout) * time.Second,
		IdleTimeout:        time.Duration(cfg.RPC.IdleTimeout) * time.Second,
		AllowedOrigins:     append([]string{}, cfg.RPC.AllowedOrigins...),
		JWT: rpc.JWTConfig{
			HMACSecret: cfg.JWTSecret(),
			Issuer:     cfg.RPC.JWT.Issuer,
			Audience:   cfg.RPC.JWT.Audience,
			ClockSkew:  time.Duration(cfg.RPC.JWT.MaxSkewSeconds) * time.Second,
		},
	}
}

type envLookupFunc func(string) (string, bool)

// resolveGenesisPath prefers the CLI flag, then R2S_GENESIS, then the config.
func resolveGenesisPath(cliPath, cfgPath string, lookup envLookupFunc) string {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(cfgPath)
}
