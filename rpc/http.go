package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"saleledger/native/sale"
	"saleledger/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-Id"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// Server exposes the sale engine over JSON-RPC 2.0.
type Server struct {
	engine *sale.Engine
	auth   *Authenticator

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	perMin   rate.Limit
	burst    int
}

// Config carries the RPC server settings.
type Config struct {
	Auth              AuthConfig
	RequestsPerMinute float64
	Burst             int
}

// NewServer wires the engine behind the HTTP surface.
func NewServer(engine *sale.Engine, cfg Config) *Server {
	perMin := cfg.RequestsPerMinute
	if perMin <= 0 {
		perMin = 600
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 30
	}
	return &Server{
		engine:   engine,
		auth:     NewAuthenticator(cfg.Auth),
		visitors: make(map[string]*rate.Limiter),
		perMin:   rate.Limit(perMin / 60),
		burst:    burst,
	}
}

// Router mounts the JSON-RPC endpoint alongside health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(remote string) *rate.Limiter {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[host]
	if !ok {
		limiter = rate.NewLimiter(s.perMin, s.burst)
		s.visitors[host] = limiter
	}
	return limiter
}

// RPCRequest is the JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// RPCResponse is the JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if !s.limiterFor(r.RemoteAddr).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "malformed JSON-RPC request")
		return
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC envelope")
		return
	}

	handler, ok := methodTable[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method "+req.Method)
		return
	}
	if handler.admin {
		if err := s.auth.Authorize(r); err != nil {
			observability.SaleMetrics().ObserveError(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, err.Error())
			return
		}
	}

	start := time.Now()
	result, rpcErr := handler.fn(s, req.Params)
	elapsed := time.Since(start).Seconds()
	if rpcErr != nil {
		observability.SaleMetrics().ObserveRequest(req.Method, "error", elapsed)
		// Label with the bounded RPC code, never the message: messages can
		// embed caller-supplied input.
		observability.SaleMetrics().ObserveError(req.Method, strconv.Itoa(rpcErr.Code))
		writeError(w, rpcErr.status, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	observability.SaleMetrics().ObserveRequest(req.Method, "ok", elapsed)
	writeResult(w, req.ID, result)
}

type handlerError struct {
	RPCError
	status int
}

func invalidParams(msg string) *handlerError {
	return &handlerError{RPCError: RPCError{Code: codeInvalidParams, Message: msg}, status: http.StatusBadRequest}
}

// engineError maps sale sentinel errors onto JSON-RPC error codes. Every
// engine failure is whole-operation: the ledger state did not change.
func engineError(err error) *handlerError {
	status := http.StatusBadRequest
	code := codeServerError
	switch {
	case errors.Is(err, sale.ErrUnauthorized), errors.Is(err, sale.ErrOwnerRoleImmutable):
		status = http.StatusForbidden
		code = codeUnauthorized
	case errors.Is(err, sale.ErrExternalTransfer):
		status = http.StatusBadGateway
	}
	return &handlerError{RPCError: RPCError{Code: code, Message: err.Error()}, status: status}
}
