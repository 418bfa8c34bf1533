package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"authd/cmd/credential"
	"authd/cmd/internal/auth/admin"
	"authd/cmd/internal/auth/policy"
	"authd/cmd/internal/auth/session"
	"authd/cmd/internal/auth/throttle"
	"authd/cmd/internal/metrics"
	"authd/cmd/security/password"
)

// Handler wires HTTP endpoints to the session and admin services.
type Handler struct {
	log *slog.Logger
	cfg Config

	auth  *session.Authenticator
	admin *admin.Service

	// limiter is optional; without it logins are not throttled.
	limiter *throttle.Limiter
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithLimiter enables failed-login throttling.
func WithLimiter(l *throttle.Limiter) HandlerOption {
	return func(h *Handler) {
		if h == nil || l == nil {
			return
		}
		h.limiter = l
	}
}

// NewHandler constructs the HTTP handler.
func NewHandler(log *slog.Logger, cfg Config, auth *session.Authenticator, adminSvc *admin.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if auth == nil || adminSvc == nil {
		return nil, errors.New("api: nil service")
	}

	h := &Handler{log: log, cfg: cfg, auth: auth, admin: adminSvc}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /logout", h.handleLogout)
	mux.HandleFunc("GET /api/authenticate", h.handleAuthenticate)
	mux.HandleFunc("POST /api/users", h.handleRegister)
	mux.HandleFunc("PUT /api/users/{username}/password", h.handleChangePassword)
	mux.HandleFunc("PUT /api/users/{username}/authority", h.handleChangeAuthority)
	mux.HandleFunc("DELETE /api/users/{username}", h.handleDeleteUser)
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := credential.NormalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)

	if h.limiter != nil {
		ok, retryAfter, err := h.limiter.Allow(ctx, username, ipString(ip))
		if err != nil {
			h.log.Error("login throttle check failed", "err", err)
		} else if !ok {
			metrics.RecordLogin("locked")
			metrics.RecordThrottleBlock()
			h.log.Warn("login blocked by limiter", "username", username, "ip", ipString(ip))
			writeRateLimited(w, retryAfter)
			return
		}
	}

	token, exp, err := h.auth.Login(ctx, username, req.Password)
	switch {
	case err == nil:
		// fall through
	case errors.Is(err, session.ErrInvalidCredentials):
		if h.limiter != nil {
			h.limiter.RecordFailure(ctx, username, ipString(ip))
		}
		metrics.RecordLogin("invalid_credentials")
		h.log.Info("login failed", "username", username, "ip", ipString(ip))
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	case credential.IsStorageUnavailable(err):
		metrics.RecordLogin("error")
		h.log.Error("login storage failure", "err", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry later")
		return
	default:
		metrics.RecordLogin("error")
		h.log.Error("login failed unexpectedly", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if h.limiter != nil {
		h.limiter.RecordSuccess(ctx, username)
	}
	metrics.RecordLogin("success")
	h.log.Info("login succeeded", "username", username, "ip", ipString(ip))

	if h.cfg.CookieEnabled {
		h.setSessionCookie(w, token, exp)
	}

	resp := loginResponse{Token: token}
	if !exp.IsZero() {
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		Username:  caller.Username,
		Authority: caller.Authority.String(),
	})
}

// handleRegister is deliberately unauthenticated. New accounts always start
// at USER authority; promotion is a separate, admin-only operation.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if err := h.admin.Register(r.Context(), req.Username, req.Password); err != nil {
		h.writeAdminError(w, "register", err)
		return
	}

	metrics.RecordAdminOp("register", "ok")
	writeJSON(w, http.StatusCreated, identityResponse{
		Username:  credential.NormalizeUsername(req.Username),
		Authority: credential.AuthorityUser.String(),
	})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}

	var req passwordChangeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	err := h.admin.ChangePassword(r.Context(), caller, r.PathValue("username"), req.Password)
	if err != nil {
		h.writeAdminError(w, policy.ActionChangePassword.String(), err)
		return
	}

	metrics.RecordAdminOp(policy.ActionChangePassword.String(), "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangeAuthority(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}

	var req authorityChangeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	level, err := credential.ParseAuthority(req.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown authority level")
		return
	}

	if err := h.admin.ChangeAuthority(r.Context(), caller, r.PathValue("username"), level); err != nil {
		h.writeAdminError(w, policy.ActionChangeAuthority.String(), err)
		return
	}

	metrics.RecordAdminOp(policy.ActionChangeAuthority.String(), "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}

	if err := h.admin.DeleteUser(r.Context(), caller, r.PathValue("username")); err != nil {
		h.writeAdminError(w, policy.ActionDeleteUser.String(), err)
		return
	}

	metrics.RecordAdminOp(policy.ActionDeleteUser.String(), "ok")
	w.WriteHeader(http.StatusNoContent)
}

// ---- shared plumbing ----

// resolveCaller authenticates the request. On failure it writes the response
// itself and returns ok=false.
func (h *Handler) resolveCaller(w http.ResponseWriter, r *http.Request) (session.Identity, bool) {
	token := h.tokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing token")
		return session.Identity{}, false
	}

	caller, err := h.auth.Resolve(r.Context(), token)
	switch {
	case err == nil:
		return caller, true
	case errors.Is(err, session.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
		return session.Identity{}, false
	case credential.IsStorageUnavailable(err):
		h.log.Error("identity resolution storage failure", "err", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry later")
		return session.Identity{}, false
	default:
		h.log.Error("identity resolution failed unexpectedly", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return session.Identity{}, false
	}
}

func (h *Handler) writeAdminError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, admin.ErrForbidden):
		metrics.RecordAdminOp(action, "forbidden")
		writeError(w, http.StatusForbidden, "forbidden", "operation not permitted")
	case errors.Is(err, admin.ErrUserNotFound):
		metrics.RecordAdminOp(action, "not_found")
		writeError(w, http.StatusNotFound, "user_not_found", "no such user")
	case credential.IsDuplicate(err):
		metrics.RecordAdminOp(action, "duplicate")
		writeError(w, http.StatusConflict, "duplicate_username", "username already taken")
	case credential.IsInvalidInput(err),
		errors.Is(err, password.ErrPasswordTooShort),
		errors.Is(err, password.ErrPasswordTooLong),
		errors.Is(err, password.ErrWeakPassword):
		metrics.RecordAdminOp(action, "invalid")
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case credential.IsStorageUnavailable(err):
		metrics.RecordAdminOp(action, "error")
		h.log.Error("admin operation storage failure", "action", action, "err", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry later")
	default:
		metrics.RecordAdminOp(action, "error")
		h.log.Error("admin operation failed unexpectedly", "action", action, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return "unknown"
	}
	return ip.String()
}
