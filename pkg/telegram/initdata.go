package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInitData is returned when Mini App launch data is malformed,
// carries a bad signature, or is too old.
var ErrInvalidInitData = errors.New("invalid init data")

// WebAppUser is the Telegram user embedded in Mini App launch data.
type WebAppUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// ExternalID returns the Telegram user ID as stored on users.external_id.
func (u WebAppUser) ExternalID() string {
	return strconv.FormatInt(u.ID, 10)
}

// DisplayName joins first and last name, falling back to the username and then the ID.
func (u WebAppUser) DisplayName() string {
	return DisplayName(u.FirstName, u.LastName, u.Username, u.ID)
}

// DisplayName builds a human-readable name from Telegram profile fields.
func DisplayName(firstName, lastName, username string, id int64) string {
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if name != "" {
		return name
	}
	if username != "" {
		return "@" + username
	}
	return strconv.FormatInt(id, 10)
}

// InitData is the parsed Mini App launch payload.
type InitData struct {
	User     WebAppUser
	AuthDate time.Time
	QueryID  string
	Hash     string
}

// ParseInitData decodes the query-string payload without checking its signature.
func ParseInitData(raw string) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}

	data := &InitData{
		QueryID: values.Get("query_id"),
		Hash:    values.Get("hash"),
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidInitData)
	}
	if err := json.Unmarshal([]byte(userJSON), &data.User); err != nil {
		return nil, fmt.Errorf("%w: malformed user: %v", ErrInvalidInitData, err)
	}
	if data.User.ID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidInitData)
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		secs, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed auth_date", ErrInvalidInitData)
		}
		data.AuthDate = time.Unix(secs, 0)
	}

	return data, nil
}

// ValidateInitData verifies the signature Telegram attached to the launch data
// and rejects payloads older than maxAge. A zero maxAge skips the age check.
func ValidateInitData(raw, botToken string, maxAge time.Duration, now time.Time) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrInvalidInitData)
	}

	expected := Sign(values, botToken)
	if !hmac.Equal([]byte(strings.ToLower(hash)), []byte(expected)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidInitData)
	}

	data, err := ParseInitData(raw)
	if err != nil {
		return nil, err
	}

	if data.AuthDate.IsZero() {
		return nil, fmt.Errorf("%w: missing auth_date", ErrInvalidInitData)
	}
	if maxAge > 0 && now.Sub(data.AuthDate) > maxAge {
		return nil, fmt.Errorf("%w: expired", ErrInvalidInitData)
	}

	return data, nil
}

// Sign computes the hex hash Telegram attaches to launch data: an HMAC-SHA256
// of the sorted key=value lines (hash excluded), keyed by HMAC("WebAppData", botToken).
func Sign(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
