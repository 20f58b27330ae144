package rpc

import (
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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crowdfund/core"
	coreerrors "crowdfund/core/errors"
	nativecommon "crowdfund/native/common"
	"crowdfund/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError        = -32700
	codeInvalidRequest    = -32600
	codeMethodNotFound    = -32601
	codeInvalidParams     = -32602
	codeUnauthorized      = -32001
	codeServerError       = -32000
	codeRateLimited       = -32020
	codeTimingViolation   = -32030
	codeValueMismatch     = -32031
	codeStateConflict     = -32032
	codeInsufficientFunds = -32033
	codeInvalidRecipient  = -32034
	codeModulePaused      = -32035
	codeReentrantCall     = -32036
	codeNotFound          = -32040
)

// ServerConfig controls the HTTP surface of the JSON-RPC server.
type ServerConfig struct {
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Auth         AuthConfig
	RateLimit    RateLimitConfig
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest, caller [20]byte)

type rpcMethod struct {
	handler  handlerFunc
	mutating bool
}

// Server exposes a node over JSON-RPC 2.0.
type Server struct {
	node    *core.Node
	cfg     ServerConfig
	auth    *authenticator
	limiter *rateLimiter
	logger  *slog.Logger
	methods map[string]rpcMethod

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewServer builds a server for node. A nil logger falls back to the default.
func NewServer(node *core.Node, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxRequestBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		auth:    newAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}
	if !s.auth.enabled() {
		logger.Warn("rpc authentication secret not configured, mutating methods are disabled")
	}
	s.methods = map[string]rpcMethod{
		"registry_createCampaign": {handler: s.handleCreateCampaign, mutating: true},
		"registry_listCampaigns":  {handler: s.handleListCampaigns},
		"campaign_summary":        {handler: s.handleCampaignSummary},
		"campaign_balanceOf":      {handler: s.handleBalanceOf},
		"campaign_contribute":     {handler: s.handleContribute, mutating: true},
		"campaign_refund":         {handler: s.handleRefund, mutating: true},
		"campaign_finalize":       {handler: s.handleFinalize, mutating: true},
		"campaign_events":         {handler: s.handleEvents},
		"spending_create":         {handler: s.handleSpendingCreate, mutating: true},
		"spending_accept":         {handler: s.handleSpendingAccept, mutating: true},
		"spending_reject":         {handler: s.handleSpendingReject, mutating: true},
		"spending_complete":       {handler: s.handleSpendingComplete, mutating: true},
		"spending_get":            {handler: s.handleSpendingGet},
		"spending_list":           {handler: s.handleSpendingList},
		"payments_balance":        {handler: s.handlePaymentsBalance},
		"payments_withdraw":       {handler: s.handleWithdraw, mutating: true},
	}
	return s, nil
}

// Router returns the HTTP handler serving JSON-RPC, health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start listens on addr and blocks until the server stops. A graceful
// Shutdown makes Start return nil.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	s.logger.Info("json-rpc server listening", slog.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a running server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type requestIDKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func moduleOf(method string) string {
	module, _, ok := strings.Cut(method, "_")
	if !ok {
		return ""
	}
	return module
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Header().Set("Content-Type", "application/json")
	method := ""
	defer func() {
		metrics.RPC().Observe(moduleOf(method), method, ww.Status(), time.Since(start))
	}()

	r.Body = http.MaxBytesReader(ww, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(ww, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", fmt.Sprintf("limit %d bytes", tooLarge.Limit))
			return
		}
		writeError(ww, http.StatusBadRequest, nil, codeParseError, "failed to read request body", err.Error())
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(ww, http.StatusBadRequest, nil, codeParseError, "invalid JSON", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(ww, http.StatusBadRequest, req.ID, codeInvalidRequest, "jsonrpc must be 2.0", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(ww, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
		return
	}
	method = req.Method

	var caller [20]byte
	if m.mutating {
		source := clientSource(r)
		if !s.limiter.allow(source) {
			metrics.RPC().RecordThrottle(moduleOf(method), "rate_limit")
			writeError(ww, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
			return
		}
		var authErr *RPCError
		caller, authErr = s.auth.authenticate(r)
		if authErr != nil {
			writeError(ww, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	s.logger.Debug("rpc request",
		slog.String("method", method),
		slog.String("requestid", requestIDFrom(r.Context())))
	m.handler(ww, r, req, caller)
}

// writeEngineError maps an engine failure onto a JSON-RPC error by its class.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, id interface{}, err error) {
	status, code := http.StatusInternalServerError, codeServerError
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		status, code = http.StatusServiceUnavailable, codeModulePaused
	case errors.Is(err, nativecommon.ErrReentrantCall):
		status, code = http.StatusConflict, codeReentrantCall
	case errors.Is(err, core.ErrCampaignNotFound):
		status, code = http.StatusNotFound, codeNotFound
	default:
		switch coreerrors.Class(err) {
		case "timing":
			status, code = http.StatusConflict, codeTimingViolation
		case "value":
			status, code = http.StatusBadRequest, codeValueMismatch
		case "unauthorized":
			status, code = http.StatusForbidden, codeUnauthorized
		case "state":
			status, code = http.StatusConflict, codeStateConflict
		case "funds":
			status, code = http.StatusConflict, codeInsufficientFunds
		case "recipient":
			status, code = http.StatusBadRequest, codeInvalidRecipient
		}
	}
	if code == codeServerError {
		s.logger.Error("rpc handler failed",
			slog.String("requestid", requestIDFrom(r.Context())),
			slog.Any("error", err))
		writeError(w, status, id, code, "internal error", nil)
		return
	}
	writeError(w, status, id, code, err.Error(), nil)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
