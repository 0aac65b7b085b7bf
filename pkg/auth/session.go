package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName is the name of the session cookie.
const SessionName = "flightops-session"

// sessionKeyToken is the session value holding the raw session token.
const sessionKeyToken = "token"

// SessionStore keeps the session token in a signed cookie for clients that
// prefer cookies over the Authorization header.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore creates a cookie-based session store.
//
// The secret can be any passphrase - it is SHA-256 hashed to derive a 32-byte key.
// It must be consistent across server restarts and replicas. Secure cookies are
// marked SameSite=None so the Mini App webview can send them; local development
// without TLS falls back to Lax.
func NewSessionStore(secret string, maxAgeSeconds int, secure bool) *SessionStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	return &SessionStore{store: store}
}

// SaveToken stores the token in the session cookie.
func (s *SessionStore) SaveToken(w http.ResponseWriter, r *http.Request, token string) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values[sessionKeyToken] = token
	return session.Save(r, w)
}

// Token returns the token stored in the session cookie, if any.
func (s *SessionStore) Token(r *http.Request) (string, bool) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return "", false
	}
	token, ok := session.Values[sessionKeyToken].(string)
	return token, ok && token != ""
}

// Clear expires the session cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
