package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/access"
	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/audit"
	"github.com/aviaops/flightops/pkg/auth"
	"github.com/aviaops/flightops/pkg/config"
	"github.com/aviaops/flightops/pkg/metrics"
	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/services"
	"github.com/aviaops/flightops/pkg/telegram"
)

// Login results recorded in metrics.
const (
	loginSuccess     = "success"
	loginInvalid     = "invalid"
	loginRateLimited = "rate_limited"
	loginError       = "error"
)

// TelegramLoginRequest carries the raw Mini App launch data (window.Telegram.WebApp.initData).
type TelegramLoginRequest struct {
	InitData string `json:"init_data"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Permissions tells the client which controls to show. The server enforces
// them regardless.
type Permissions struct {
	CanCreateFlights bool                 `json:"can_create_flights"`
	CanDeleteFlights bool                 `json:"can_delete_flights"`
	CanExport        bool                 `json:"can_export"`
	CanViewStats     bool                 `json:"can_view_stats"`
	CanManageUsers   bool                 `json:"can_manage_users"`
	CanViewAudit     bool                 `json:"can_view_audit"`
	ReadableFields   []models.FlightField `json:"readable_fields"`
	WritableFields   []models.FlightField `json:"writable_fields"`
}

// MeResponse describes the current actor.
type MeResponse struct {
	User        *models.User `json:"user"`
	Permissions Permissions  `json:"permissions"`
}

// AuthHandler handles Telegram login and session endpoints.
type AuthHandler struct {
	userService services.UserService
	tokens      *auth.TokenIssuer
	sessions    *auth.SessionStore
	limiter     auth.LoginLimiter
	auditor     *audit.SecurityAuditor
	metrics     *metrics.Metrics
	cfg         *config.Config
	errors      errorWriter
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthHandler creates a new auth handler. sessions, limiter, auditor and
// metrics may be nil.
func NewAuthHandler(
	userService services.UserService,
	tokens *auth.TokenIssuer,
	sessions *auth.SessionStore,
	limiter auth.LoginLimiter,
	auditor *audit.SecurityAuditor,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
		sessions:    sessions,
		limiter:     limiter,
		auditor:     auditor,
		metrics:     m,
		cfg:         cfg,
		errors:      errorWriter{auditor: auditor, logger: logger},
		logger:      logger,
		now:         time.Now,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, actors *ActorLoader) {
	mux.HandleFunc("POST /api/auth/telegram", h.TelegramLogin)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/me", authenticated(authMiddleware, actors, h.GetMe))
}

// TelegramLogin handles POST /api/auth/telegram
// Verifies the launch data, registers first-time users as pilots and issues a session token.
func (h *AuthHandler) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(r.Context(), ip)
		if err != nil {
			h.logger.Warn("Login rate limiter unavailable, allowing request", zap.Error(err))
		} else if !allowed {
			h.metrics.Login(loginRateLimited)
			if err := ErrorResponse(w, http.StatusTooManyRequests, "rate_limited", "Too many login attempts"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	var req TelegramLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.Login(loginInvalid)
		h.errors.write(w, r, err, "login")
		return
	}
	if strings.TrimSpace(req.InitData) == "" {
		h.metrics.Login(loginInvalid)
		h.errors.write(w, r, apperrors.Validation("init_data is required"), "login")
		return
	}

	data, err := h.parseInitData(req.InitData)
	if err != nil {
		h.metrics.Login(loginInvalid)
		if h.auditor != nil {
			h.auditor.LogAuthFailure(r.Context(), err.Error(), ip)
		}
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid Telegram login data"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	user, err := h.userService.ResolveOrCreate(r.Context(), data.User.ExternalID(), data.User.DisplayName())
	if err != nil {
		h.metrics.Login(loginError)
		h.errors.write(w, r, err, "login")
		return
	}

	token, expiresAt, err := h.tokens.Issue(user.ExternalID)
	if err != nil {
		h.metrics.Login(loginError)
		h.errors.write(w, r, err, "login")
		return
	}

	if h.sessions != nil {
		if err := h.sessions.SaveToken(w, r, token); err != nil {
			// The Mini App uses the bearer token from the body; the cookie is optional.
			h.logger.Warn("Failed to save session cookie", zap.Error(err))
		}
	}

	h.metrics.Login(loginSuccess)
	h.logger.Debug("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role))

	if err := writeData(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *AuthHandler) parseInitData(raw string) (*telegram.InitData, error) {
	if !h.cfg.Auth.EnableVerification {
		return telegram.ParseInitData(raw)
	}
	if h.cfg.Telegram.BotToken == "" {
		return nil, errors.New("bot token not configured")
	}
	return telegram.ValidateInitData(raw, h.cfg.Telegram.BotToken, h.cfg.Auth.InitDataMaxAge, h.now())
}

// Logout handles POST /api/auth/logout
// Clears the session cookie. Bearer tokens expire on their own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if err := h.sessions.Clear(w, r); err != nil {
			h.logger.Warn("Failed to clear session cookie", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMe handles GET /api/me
// Returns the freshly loaded actor and what their role allows.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	resp := MeResponse{User: actor, Permissions: permissionsFor(actor.Role)}
	if err := writeData(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func permissionsFor(role string) Permissions {
	writable := access.WritableFlightFields(role)
	if writable == nil {
		writable = []models.FlightField{}
	}
	return Permissions{
		CanCreateFlights: access.Allowed(role, access.OpCreateFlight),
		CanDeleteFlights: access.Allowed(role, access.OpDeleteFlight),
		CanExport:        access.Allowed(role, access.OpExportFlights),
		CanViewStats:     access.Allowed(role, access.OpViewStats),
		CanManageUsers:   access.Allowed(role, access.OpChangeRole),
		CanViewAudit:     access.Allowed(role, access.OpViewAudit),
		ReadableFields:   access.ReadableFlightFields(role),
		WritableFields:   writable,
	}
}
