// Package identity provides anonymous per-browser identity for the web chat.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	CookieName      = "diffbot_uid"
	cookieMaxAge    = 365 * 24 * time.Hour
	userIDMagnitude = 1 << 62
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(userIDKey).(int64)
	return v, ok
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// generateUserID returns a random negative id. Telegram user ids are
// positive, so browser users never collide with them.
func generateUserID() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("generate user id: %w", err)
	}
	n := int64(binary.BigEndian.Uint64(buf[:]) % userIDMagnitude)
	return -(n + 1), nil
}

func parseUserID(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id >= 0 || id < -userIDMagnitude {
		return 0, false
	}
	return id, true
}

func setCookie(w http.ResponseWriter, id int64, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    strconv.FormatInt(id, 10),
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(cookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

func getOrCreateUserID(w http.ResponseWriter, r *http.Request, secure bool) (int64, error) {
	if c, err := r.Cookie(CookieName); err == nil {
		if id, ok := parseUserID(c.Value); ok {
			setCookie(w, id, secure)
			return id, nil
		}
	}

	id, err := generateUserID()
	if err != nil {
		return 0, err
	}
	setCookie(w, id, secure)
	return id, nil
}

// Middleware assigns every browser a stable numeric user id kept in a cookie.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := getOrCreateUserID(w, r, secure)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
