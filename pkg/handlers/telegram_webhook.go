package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/audit"
	"github.com/aviaops/flightops/pkg/logging"
	"github.com/aviaops/flightops/pkg/services"
	"github.com/aviaops/flightops/pkg/telegram"
)

// webhookSecretHeader carries the secret registered with setWebhook.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Reply to /start.
const (
	startGreeting   = "Добро пожаловать! Откройте приложение, чтобы работать с рейсами."
	startButtonText = "Открыть приложение"
)

// WebAppSender sends a message with a button that opens the Mini App.
type WebAppSender interface {
	SendWebAppButton(ctx context.Context, chatID int64, text, buttonText, url string) error
}

// TelegramWebhookHandler receives bot updates.
type TelegramWebhookHandler struct {
	userService services.UserService
	sender      WebAppSender
	secret      string
	webAppURL   string
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewTelegramWebhookHandler creates a webhook handler. sender may be nil when
// no bot token is configured; users are still registered.
func NewTelegramWebhookHandler(
	userService services.UserService,
	sender WebAppSender,
	secret, webAppURL string,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) *TelegramWebhookHandler {
	return &TelegramWebhookHandler{
		userService: userService,
		sender:      sender,
		secret:      secret,
		webAppURL:   webAppURL,
		auditor:     auditor,
		logger:      logger.Named("telegram-webhook"),
	}
}

// RegisterRoutes registers the webhook route on the given mux.
func (h *TelegramWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/telegram/webhook", h.Handle)
}

// Handle handles POST /api/telegram/webhook
// Anything other than /start is acknowledged and ignored. Processing errors
// still answer 200 so Telegram does not redeliver the update.
func (h *TelegramWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(webhookSecretHeader)), []byte(h.secret)) != 1 {
		if h.auditor != nil {
			h.auditor.LogAuthFailure(r.Context(), "webhook secret mismatch", clientIP(r))
		}
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid webhook secret"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var update tgbotapi.Update
	if err := decodeJSON(w, r, &update); err != nil {
		h.logger.Warn("Ignoring malformed update", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	msg := update.Message
	if msg != nil && msg.From != nil && msg.Chat != nil && msg.IsCommand() && msg.Command() == "start" {
		h.handleStart(r.Context(), msg)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *TelegramWebhookHandler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	externalID := strconv.FormatInt(from.ID, 10)
	name := telegram.DisplayName(from.FirstName, from.LastName, from.UserName, from.ID)

	user, err := h.userService.ResolveOrCreate(ctx, externalID, name)
	if err != nil {
		h.logger.Error("Failed to register user from /start",
			zap.String("external_id", externalID),
			zap.String("error", logging.SanitizeError(err)))
		return
	}

	if h.sender == nil || h.webAppURL == "" {
		h.logger.Debug("Skipping /start reply, bot or web app URL not configured",
			zap.String("user_id", user.ID.String()))
		return
	}

	if err := h.sender.SendWebAppButton(ctx, msg.Chat.ID, startGreeting, startButtonText, h.webAppURL); err != nil {
		h.logger.Warn("Failed to reply to /start",
			zap.String("user_id", user.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
	}
}
