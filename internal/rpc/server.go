// Package rpc implements the JSON-RPC 2.0 API server for a deployed
// mystery box contract.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"sort"
	"time"

	"github.com/Klingon-tech/mysterybox/config"
	"github.com/Klingon-tech/mysterybox/internal/contract"
	"github.com/Klingon-tech/mysterybox/internal/host"
	klog "github.com/Klingon-tech/mysterybox/internal/log"
	"github.com/rs/zerolog"
)

const (
	// maxBodySize is the maximum allowed request body size (1 MB).
	maxBodySize = 1 << 20
	// maxBatch is the most requests accepted in one batch.
	maxBatch = 100
)

// handlerFunc serves one method. params is nil when the request had none.
type handlerFunc func(params json.RawMessage) (interface{}, *Error)

// Server is the JSON-RPC 2.0 HTTP server.
type Server struct {
	addr        string
	host        *host.Host
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	methods     map[string]handlerFunc
	allowed     []netip.Prefix // Empty = allow all.
	corsOrigins []string       // Empty = no CORS headers.
}

// New creates a new RPC server bound to the given contract host.
// An optional RPCConfig enables IP filtering and CORS.
func New(addr string, h *host.Host, rpcCfg ...config.RPCConfig) *Server {
	s := &Server{
		addr:   addr,
		host:   h,
		logger: klog.RPC,
	}
	if len(rpcCfg) > 0 {
		s.allowed = parseAllowedIPs(rpcCfg[0].AllowedIPs)
		s.corsOrigins = rpcCfg[0].CORSOrigins
	}
	s.methods = map[string]handlerFunc{
		"contract_info":             s.handleContractInfo,
		"contract_unitPrice":        s.handleContractUnitPrice,
		"contract_costFor":          s.handleContractCostFor,
		"contract_requiredDeposit":  s.handleContractRequiredDeposit,
		"contract_pendingIncome":    s.handleContractPendingIncome,
		"nft_metadata":              s.handleNFTMetadata,
		"nft_payout":                s.handleNFTPayout,
		"nft_token":                 s.handleNFTToken,
		"nft_tokensForOwner":        s.handleNFTTokensForOwner,
		"nft_supply":                s.handleNFTSupply,
		"royalty_get":               s.handleRoyaltyGet,
		"account_getBalance":        s.handleAccountGetBalance,
		"account_getNonce":          s.handleAccountGetNonce,
		"contract_buy":              s.handleContractBuy,
		"contract_distributeIncome": s.handleContractDistributeIncome,
		"nft_transfer":              s.handleNFTTransfer,
		"nft_approve":               s.handleNFTApprove,
		"nft_revoke":                s.handleNFTRevoke,
		"nft_revokeAll":             s.handleNFTRevokeAll,
		"nft_isApproved":            s.handleNFTIsApproved,
		"rpc_methods":               s.handleRPCMethods,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// parseAllowedIPs converts IP and CIDR strings to prefixes. Plain IPs get a
// full-length prefix. Invalid entries are skipped; config.Validate rejects
// them before the server is built.
func parseAllowedIPs(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, entry := range entries {
		if p, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			out = append(out, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
		}
	}
	return out
}

// Start begins listening. It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Int("methods", len(s.methods)).Msg("RPC server listening")
	return nil
}

// Addr returns the bound address, which differs from the configured one
// when port 0 was requested.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// inbound is a request as read off the wire.
type inbound struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if len(s.allowed) > 0 && !s.remoteAllowed(r.RemoteAddr) {
		s.logger.Debug().Str("remote", r.RemoteAddr).Msg("RPC request blocked")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	s.setCORSHeaders(w, r)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, errorResponse(nil, CodeInvalidRequest, "only POST method is allowed"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeJSON(w, errorResponse(nil, CodeParseError, "failed to read request body"))
		return
	}
	if len(body) > maxBodySize {
		writeJSON(w, errorResponse(nil, CodeInvalidRequest, "request body too large"))
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		s.serveBatch(w, body)
		return
	}
	var req inbound
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, errorResponse(nil, CodeParseError, "invalid JSON"))
		return
	}
	writeJSON(w, s.call(&req))
}

func (s *Server) serveBatch(w http.ResponseWriter, body []byte) {
	var batch []json.RawMessage
	if err := json.Unmarshal(body, &batch); err != nil {
		writeJSON(w, errorResponse(nil, CodeParseError, "invalid JSON"))
		return
	}
	if len(batch) == 0 {
		writeJSON(w, errorResponse(nil, CodeInvalidRequest, "empty batch"))
		return
	}
	if len(batch) > maxBatch {
		writeJSON(w, errorResponse(nil, CodeInvalidRequest, fmt.Sprintf("batch of %d exceeds %d", len(batch), maxBatch)))
		return
	}

	out := make([]Response, len(batch))
	for i, raw := range batch {
		var req inbound
		if err := json.Unmarshal(raw, &req); err != nil {
			out[i] = errorResponse(nil, CodeInvalidRequest, "invalid request")
			continue
		}
		out[i] = s.call(&req)
	}
	writeJSON(w, out)
}

// call validates and dispatches a single request.
func (s *Server) call(req *inbound) Response {
	id := idOf(req.ID)
	if req.JSONRPC != "2.0" {
		return errorResponse(id, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		return errorResponse(id, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}

	start := time.Now()
	result, rpcErr := handler(req.Params)
	ev := s.logger.Debug().Str("method", req.Method).Dur("took", time.Since(start))
	if rpcErr != nil {
		ev.Int("code", rpcErr.Code).Msg(rpcErr.Message)
		return Response{JSONRPC: "2.0", Error: rpcErr, ID: id}
	}
	ev.Msg("ok")
	return Response{JSONRPC: "2.0", Result: result, ID: id}
}

func (s *Server) handleRPCMethods(_ json.RawMessage) (interface{}, *Error) {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// idOf echoes the request id back verbatim; absent ids become null.
func idOf(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func errorResponse(id interface{}, code int, message string) Response {
	return Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: message}, ID: id}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) remoteAllowed(remote string) bool {
	ap, err := netip.ParseAddrPort(remote)
	if err != nil {
		return false
	}
	addr := ap.Addr().Unmap()
	for _, p := range s.allowed {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if len(s.corsOrigins) == 0 || origin == "" {
		return
	}
	for _, o := range s.corsOrigins {
		if o != "*" && o != origin {
			continue
		}
		w.Header().Set("Access-Control-Allow-Origin", o)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		return
	}
}

// parseParams decodes params into target. Unknown fields are refused.
func parseParams(params json.RawMessage, target interface{}) *Error {
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, contract.ErrInvalidQuantity) {
			return toError(err)
		}
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
