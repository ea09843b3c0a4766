package main

import (
	"context"
	"fmt"
	"net/http"
)

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.login", map[string]any{
			"email":      email,
			"password":   password,
			"token_name": tokenName,
		}, out)
	}
	client := newAPIClient(cfg.Server, "")
	return client.request(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"email":     email,
		"password":  password,
		"mode":      "token",
		"tokenName": tokenName,
	}, out)
}

func doWhoAmI(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.whoami", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/auth/whoami", nil, out)
}

func doLogout(ctx context.Context, cfg cliConfig) error {
	if cfg.Transport == "uds" {
		return nil
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func doSync(ctx context.Context, cfg cliConfig, rpcMethod, httpPath string, items any, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, rpcMethod, map[string]any{"token": cfg.Token, "items": items}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, httpPath, items, out)
}

func doDashboardStats(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "stats.dashboard", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/stats/dashboard", nil, out)
}

func doProjectsList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "projects.list", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/projects", nil, out)
}

func doProjectDetails(ctx context.Context, cfg cliConfig, projectID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "projects.details", map[string]any{"token": cfg.Token, "project_id": projectID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/projects/"+uintToString(projectID)+"/details", nil, out)
}

func doAuditList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "audit.list", map[string]any{"token": cfg.Token, "limit": 200}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/audit/logs", nil, out)
}

func uintToString(v uint) string {
	return fmt.Sprintf("%d", v)
}
