package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 64 << 10

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.authorizeRPC(w, r) {
		return
	}
	if !s.limiter.Allow(rpcRateLimitKey(r, s.extractRPCToken(r)), s.now()) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	if s.service == nil {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeServiceUnavailable, Message: "service is not initialized"},
		})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	reqID := fmt.Sprintf("rpc_%d", time.Now().UnixNano())
	started := time.Now()
	s.logger.Info("rpc request", "request_id", reqID, "method", req.Method, "rpc_id", string(req.ID))

	result, rpcErr := s.dispatchRPC(r.Context(), req.Method, req.Params)
	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
		s.logger.Error("rpc failed", "request_id", reqID, "method", req.Method, "rpc_code", rpcErr.Code, "latency_ms", time.Since(started).Milliseconds())
	} else {
		s.logger.Info("rpc response", "request_id", reqID, "method", req.Method, "latency_ms", time.Since(started).Milliseconds())
	}
	s.metrics.ObserveRPC(req.Method, code)
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr})
}

// dispatchRPC maps a method to the service. Operation failures travel inside
// the Result payload; rpcError is reserved for protocol problems.
func (s *Server) dispatchRPC(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil
	case "session_status":
		return s.service.Status(), nil
	case "session_login":
		params, err := decodeLoginParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		return s.service.Login(ctx, params.Relogin, params.LoginHint), nil
	case "console_last":
		return s.service.LastDisplay(), nil
	}
	if call, ok := s.noParamMethods()[method]; ok {
		if err := requireNoParams(rawParams); err != nil {
			return nil, rpcInvalidParams()
		}
		return call(ctx), nil
	}
	return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found"}
}

func (s *Server) noParamMethods() map[string]func(context.Context) any {
	return map[string]func(context.Context) any{
		"session_logout":         func(ctx context.Context) any { return s.service.Logout(ctx) },
		"session_user_info":      func(ctx context.Context) any { return s.service.UserInfo(ctx) },
		"session_id_token":       func(ctx context.Context) any { return s.service.IDToken(ctx) },
		"session_parse_id_token": func(ctx context.Context) any { return s.service.ParseIDToken(ctx) },
		"chain_get_chain_id":     func(ctx context.Context) any { return s.service.ChainID(ctx) },
		"chain_get_accounts":     func(ctx context.Context) any { return s.service.Accounts(ctx) },
		"chain_get_balance":      func(ctx context.Context) any { return s.service.Balance(ctx) },
		"chain_sign_message":     func(ctx context.Context) any { return s.service.SignMessage(ctx) },
		"chain_sign_transaction": func(ctx context.Context) any { return s.service.SignTransaction(ctx) },
		"chain_send_transaction": func(ctx context.Context) any { return s.service.SendTransaction(ctx) },
	}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: codeInvalidRequest, Message: "invalid request"},
	})
}
