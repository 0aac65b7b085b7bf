// Package telegram delivers messages through the Telegram Bot API and verifies
// Mini App launch data.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Channel delivers a text message to a recipient identified by their external ID.
type Channel interface {
	Send(ctx context.Context, recipient string, text string) error
}

// BotChannel sends messages as the configured bot.
type BotChannel struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

var _ Channel = (*BotChannel)(nil)

// NewBotChannel authorizes the bot token against the Bot API (getMe).
// An empty apiEndpoint uses the public Telegram endpoint. The client bounds every call.
func NewBotChannel(token, apiEndpoint string, client *http.Client, logger *zap.Logger) (*BotChannel, error) {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}

	logger = logger.Named("telegram")
	logger.Info("Authorized telegram bot", zap.String("username", api.Self.UserName))

	return &BotChannel{api: api, logger: logger}, nil
}

// Username returns the bot's @username.
func (c *BotChannel) Username() string {
	return c.api.Self.UserName
}

// Send delivers a plain text message. The recipient must be a numeric chat ID.
func (c *BotChannel) Send(ctx context.Context, recipient string, text string) error {
	chatID, err := parseChatID(recipient)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", chatID, wrapAPIError(err))
	}
	return nil
}

// webAppInfo and friends model the inline keyboard button that opens a Mini App.
type webAppInfo struct {
	URL string `json:"url"`
}

type webAppButton struct {
	Text   string     `json:"text"`
	WebApp webAppInfo `json:"web_app"`
}

type webAppKeyboard struct {
	InlineKeyboard [][]webAppButton `json:"inline_keyboard"`
}

// SendWebAppButton sends text with a single inline button that opens url as a Mini App.
func (c *BotChannel) SendWebAppButton(ctx context.Context, chatID int64, text, buttonText, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonEmpty("text", text)
	keyboard := webAppKeyboard{
		InlineKeyboard: [][]webAppButton{{{Text: buttonText, WebApp: webAppInfo{URL: url}}}},
	}
	if err := params.AddInterface("reply_markup", keyboard); err != nil {
		return fmt.Errorf("failed to encode keyboard: %w", err)
	}

	if _, err := c.api.MakeRequest("sendMessage", params); err != nil {
		return fmt.Errorf("failed to send web app button to %d: %w", chatID, wrapAPIError(err))
	}
	return nil
}

// LogChannel writes messages to the log instead of sending them.
// Used in local development when no bot token is configured.
type LogChannel struct {
	logger *zap.Logger
}

var _ Channel = (*LogChannel)(nil)

// NewLogChannel creates a LogChannel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger.Named("telegram")}
}

func (c *LogChannel) Send(ctx context.Context, recipient string, text string) error {
	c.logger.Info("Telegram disabled, message not sent",
		zap.String("recipient", recipient),
		zap.String("text", text))
	return nil
}

func parseChatID(recipient string) (int64, error) {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram recipient %q: %w", recipient, err)
	}
	return chatID, nil
}
