package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Mukul-raii/Miss-Minutes/internal/application"
	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
	"github.com/go-chi/chi/v5"
)

const sessionCookieName = "mm_session"

type contextKey string

const identityKey contextKey = "identity"

type Handler struct {
	service *application.TrackerService
}

// NewRouter wires the JSON API. Sync endpoints authenticate inside the
// service so the bearer credential is resolved exactly once per batch;
// read endpoints go through the middleware.
func NewRouter(service *application.TrackerService) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", h.handleLogin)
		api.Post("/auth/logout", h.handleLogout)
		api.With(h.requireAuth).Get("/auth/whoami", h.handleWhoAmI)

		api.Post("/sync/activities", h.handleSyncActivities)
		api.Post("/sync/file-activities", h.handleSyncFileActivities)
		api.Post("/sync/commits", h.handleSyncCommits)
		api.Post("/sync/daily-stats", h.handleSyncDailyStats)

		api.With(h.requireAuth).Get("/stats/dashboard", h.handleDashboardStats)
		api.With(h.requireAuth).Get("/projects", h.handleListProjects)
		api.With(h.requireAuth).Get("/projects/{projectID}", h.handleGetProject)
		api.With(h.requireAuth).Get("/projects/{projectID}/details", h.handleProjectDetails)
		api.With(h.requireAuth).Get("/audit/logs", h.handleListAuditLogs)
	})

	return r
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Mode      string `json:"mode"`
	TokenName string `json:"tokenName"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "token"
	}

	if mode == "session" {
		u, token, err := h.service.LoginWithSession(r.Context(), req.Email, req.Password, 12*time.Hour)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		h.setSessionCookie(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "mode": "session"})
		return
	}

	u, token, err := h.service.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "token": token, "mode": "token"})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookieName)
	if err == nil && c.Value != "" {
		_ = h.service.LogoutSession(r.Context(), c.Value)
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": identity.User.ID, "email": identity.User.Email})
}

func (h *Handler) handleSyncActivities(w http.ResponseWriter, r *http.Request) {
	var items []domain.ActivityInput
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	resp, err := h.service.SyncActivities(r.Context(), bearerToken(r), items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSyncFileActivities(w http.ResponseWriter, r *http.Request) {
	var items []domain.FileActivityInput
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	resp, err := h.service.SyncFileActivities(r.Context(), bearerToken(r), items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSyncCommits(w http.ResponseWriter, r *http.Request) {
	var items []domain.CommitInput
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	resp, err := h.service.SyncCommits(r.Context(), bearerToken(r), items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSyncDailyStats(w http.ResponseWriter, r *http.Request) {
	var items []domain.DailyStatsInput
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	resp, err := h.service.SyncDailyStats(r.Context(), bearerToken(r), items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	stats, err := h.service.DashboardStats(r.Context(), identity.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	projects, err := h.service.ListProjects(r.Context(), identity.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	projectID, err := parseUintParam(r, "projectID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid project id"})
		return
	}
	project, err := h.service.GetProject(r.Context(), identity.User.ID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleProjectDetails(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	projectID, err := parseUintParam(r, "projectID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid project id"})
		return
	}
	details, err := h.service.ProjectDetails(r.Context(), identity.User.ID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	items, err := h.service.ListAuditLogs(r.Context(), identity.User.ID, 500)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := h.authenticateRequest(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

func (h *Handler) authenticateRequest(r *http.Request) (domain.Identity, bool) {
	if token := bearerToken(r); token != "" {
		identity, err := h.service.AuthenticateBearerToken(r.Context(), token)
		if err == nil {
			return identity, true
		}
	}

	c, err := r.Cookie(sessionCookieName)
	if err == nil && strings.TrimSpace(c.Value) != "" {
		identity, authErr := h.service.AuthenticateSession(r.Context(), c.Value)
		if authErr == nil {
			return identity, true
		}
	}

	return domain.Identity{}, false
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

func parseUintParam(r *http.Request, name string) (uint, error) {
	value, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case err == domain.ErrUnauthorized:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case err == domain.ErrNotFound:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
