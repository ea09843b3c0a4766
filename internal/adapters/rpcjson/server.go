package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mukul-raii/Miss-Minutes/internal/application"
	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
)

// Server exposes the tracker over a local unix socket speaking
// JSON-RPC 2.0, one JSON value per message, for the bundled CLI
// client.
type Server struct {
	service  *application.TrackerService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  any         `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.TrackerService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "auth.login":
		return s.handleAuthLogin(ctx, req)
	case "auth.whoami":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"id": identity.User.ID, "email": identity.User.Email}, ID: req.ID}
	case "sync.activities":
		var p struct {
			Token string                 `json:"token"`
			Items []domain.ActivityInput `json:"items"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.SyncActivities(ctx, p.Token, p.Items)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "sync.file_activities":
		var p struct {
			Token string                     `json:"token"`
			Items []domain.FileActivityInput `json:"items"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.SyncFileActivities(ctx, p.Token, p.Items)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "sync.commits":
		var p struct {
			Token string               `json:"token"`
			Items []domain.CommitInput `json:"items"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.SyncCommits(ctx, p.Token, p.Items)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "sync.daily_stats":
		var p struct {
			Token string                   `json:"token"`
			Items []domain.DailyStatsInput `json:"items"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.SyncDailyStats(ctx, p.Token, p.Items)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "stats.dashboard":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		out, err := s.service.DashboardStats(ctx, identity.User.ID)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "projects.list":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		out, err := s.service.ListProjects(ctx, identity.User.ID)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "projects.details":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token     string `json:"token"`
			ProjectID uint   `json:"project_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ProjectDetails(ctx, identity.User.ID, p.ProjectID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "audit.list":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Limit int    `json:"limit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListAuditLogs(ctx, identity.User.ID, p.Limit)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.service.LoginWithAPIToken(ctx, p.Email, p.Password, p.TokenName, nil)
	if err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "invalid credentials"}, ID: req.ID}
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "email": u.Email, "token": token}, ID: req.ID}
}

func (s *Server) authz(ctx context.Context, req request) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.service.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "unauthorized"}, ID: req.ID}, false
	}
	return identity, response{}, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func appError(id any, err error) response {
	switch {
	case err == domain.ErrUnauthorized:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "unauthorized"}, ID: id}
	case domain.IsValidation(err):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40000, Message: err.Error()}, ID: id}
	case err == domain.ErrNotFound:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40400, Message: "not found"}, ID: id}
	default:
		return internalError(id, err)
	}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
