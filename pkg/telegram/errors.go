package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// APIError is a Bot API failure. It tells the retry package whether another
// attempt makes sense and how long Telegram asked us to wait.
type APIError struct {
	Code        int
	Description string
	retryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.retryAfter > 0 {
		return fmt.Sprintf("telegram api error %d: %s (retry after %s)", e.Code, e.Description, e.retryAfter)
	}
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// IsRetryable reports rate limiting and server-side failures as transient.
// Blocked bots, unknown chats and bad requests are permanent.
func (e *APIError) IsRetryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// RetryAfter is the delay Telegram requested, or zero.
func (e *APIError) RetryAfter() time.Duration {
	return e.retryAfter
}

// wrapAPIError converts a Bot API error response into an *APIError.
// Transport errors pass through unchanged.
func wrapAPIError(err error) error {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return err
	}
	return &APIError{
		Code:        tgErr.Code,
		Description: tgErr.Message,
		retryAfter:  time.Duration(tgErr.RetryAfter) * time.Second,
	}
}
