package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"r2s/core"
	"r2s/observability"
	"r2s/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeForbidden      = -32003
	codeNotFound       = -32004
	codeConflict       = -32009
	codeDuplicateTx    = -32010
	codePaused         = -32011
	codeRateLimited    = -32020
)

// ServerConfig tunes the JSON-RPC listener.
type ServerConfig struct {
	// AuthToken guards ledger_sendTransaction. Empty leaves submission open.
	AuthToken          string
	RateLimitPerMinute float64
	RateLimitBurst     int
	MaxBodyBytes       int64
	ReadHeaderTimeout  time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	AllowedOrigins     []string
	// JWT, when it carries a secret, accepts HMAC-signed bearer tokens as an
	// alternative to AuthToken.
	JWT JWTConfig
}

type methodHandler func(r *http.Request, params []json.RawMessage) (interface{}, *RPCError)

type Server struct {
	node    *core.Node
	cfg     ServerConfig
	logger  *slog.Logger
	limiter *RateLimiter
	methods map[string]methodHandler
	authed  map[string]struct{}
	jwt     *jwtVerifier

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(node *core.Node, logger *slog.Logger, cfg ServerConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxRequestBytes
	}
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	s := &Server{
		node:   node,
		cfg:    cfg,
		logger: logger,
		authed: map[string]struct{}{"ledger_sendTransaction": {}},
		jwt:    newJWTVerifier(cfg.JWT),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = NewRateLimiter(RateLimit{RequestsPerMinute: cfg.RateLimitPerMinute, Burst: cfg.RateLimitBurst})
	}
	s.methods = map[string]methodHandler{
		"ledger_sendTransaction": s.handleSendTransaction,
		"ledger_getReceipt":      s.handleGetReceipt,
		"ledger_nonce":           s.handleNonce,
		"ledger_status":          s.handleStatus,
		"ledger_events":          s.handleEvents,

		"campaign_get":                s.handleCampaignGet,
		"campaign_participation":      s.handleParticipationGet,
		"campaign_participations":     s.handleCampaignParticipations,
		"campaign_userParticipations": s.handleUserParticipations,
		"campaign_merchantCampaigns":  s.handleMerchantCampaigns,
		"campaign_stats":              s.handleCampaignStats,
		"campaign_isActive":           s.handleCampaignIsActive,
		"campaign_userDeposit":        s.handleUserDeposit,
		"campaign_hasRole":            s.handleHasRole,
		"campaign_roleAdmin":          s.handleRoleAdmin,
		"campaign_isWhitelisted":      s.handleIsWhitelisted,
		"campaign_isBlacklisted":      s.handleIsBlacklisted,

		"token_balance":   s.handleTokenBalance,
		"token_allowance": s.handleTokenAllowance,
		"token_list":      s.handleTokenList,
	}
	switch {
	case cfg.AuthToken != "":
		logger.Info("rpc authentication enabled", logging.MaskField("auth_token", cfg.AuthToken))
	case s.jwt != nil:
		logger.Info("rpc jwt authentication enabled", slog.String("issuer", cfg.JWT.Issuer))
	default:
		logger.Warn("rpc authentication disabled; ledger_sendTransaction is open")
	}
	return s
}

// Router returns the HTTP routes served by the node.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(CORS(s.cfg.AllowedOrigins))
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.Handler())
	r.Get("/ws/events", s.handleEventsWS)

	r.Group(func(g chi.Router) {
		g.Use(otelhttp.NewMiddleware("r2s-rpc"))
		if s.limiter != nil {
			g.Use(s.limiter.Middleware("rpc"))
		}
		g.Post("/", s.handle)
		g.Post("/rpc", s.handle)
	})
	return r
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	s.logger.Info("starting JSON-RPC server", slog.String("address", listener.Addr().String()))
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string {
	return e.Message
}

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle decodes a JSON-RPC request and routes it to the method table.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, &RPCError{Code: codeInvalidRequest, Message: message})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "method required"})
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("rpc.method", req.Method))

	module := req.Method
	if idx := strings.Index(module, "_"); idx > 0 {
		module = module[:idx]
	}
	status := http.StatusOK
	defer func() {
		observability.ModuleMetrics().Observe(module, req.Method, status, time.Since(start))
	}()

	handler, ok := s.methods[req.Method]
	if !ok {
		status = http.StatusNotFound
		writeError(w, status, req.ID, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)})
		return
	}
	if _, guarded := s.authed[req.Method]; guarded {
		if authErr := s.requireAuth(r); authErr != nil {
			status = http.StatusUnauthorized
			writeError(w, status, req.ID, authErr)
			return
		}
	}

	result, rpcErr := handler(r, req.Params)
	if rpcErr != nil {
		status = rpcErr.status
		if status == 0 {
			status = http.StatusBadRequest
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("rpc request failed",
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", req.Method),
				slog.String("error", rpcErr.Message))
		}
		writeError(w, status, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}
