// Package auth gates protected routes behind the shared site password. A
// client proves knowledge of the password by sending
// hex(HMAC-SHA256(key=sessionID, msg=password)); sessions that pass are
// remembered for a while in a Cache.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrMissingSession is returned when no session id was supplied.
var ErrMissingSession = errors.New("session id is required for password validation")

// DefaultSessionTTL is how long an authenticated session is remembered.
const DefaultSessionTTL = 30 * time.Minute

// SessionHeader carries the session id on protected requests.
const SessionHeader = "X-Session-ID"

// Cache stores authenticated session markers with a TTL.
type Cache interface {
	Set(ctx context.Context, key string, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
}

// Validator checks submitted passwords and authenticated sessions.
type Validator struct {
	password string
	cache    Cache
	ttl      time.Duration
}

// NewValidator constructs a Validator. An empty password disables the check.
func NewValidator(password string, cache Cache, ttl time.Duration) *Validator {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Validator{password: password, cache: cache, ttl: ttl}
}

// Sign computes what a client must submit for sessionID.
func Sign(password, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(sessionID))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

func cacheKey(sessionID string) string {
	return "auth_session_" + sessionID
}

// Enabled reports whether a site password is configured.
func (v *Validator) Enabled() bool {
	return v.password != ""
}

// Validate checks submitted against the site password for sessionID and
// remembers the session on success.
func (v *Validator) Validate(ctx context.Context, submitted, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, ErrMissingSession
	}
	if !v.Enabled() {
		return true, nil
	}
	want := Sign(v.password, sessionID)
	if !hmac.Equal([]byte(submitted), []byte(want)) {
		return false, nil
	}
	if err := v.cache.Set(ctx, cacheKey(sessionID), v.ttl); err != nil {
		return true, fmt.Errorf("remember session: %w", err)
	}
	return true, nil
}

// IsAuthenticated reports whether sessionID passed Validate within the TTL.
func (v *Validator) IsAuthenticated(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	return v.cache.Has(ctx, cacheKey(sessionID))
}

// RequireSession rejects requests whose session has not been authenticated.
// It is a no-op when no site password is configured.
func (v *Validator) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		id := r.Header.Get(SessionHeader)
		if id == "" {
			id = r.URL.Query().Get("sessionId")
		}
		ok, err := v.IsAuthenticated(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"session check failed"}`, http.StatusInternalServerError)
			return
		}
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"password required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
