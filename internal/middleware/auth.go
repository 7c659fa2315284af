package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"smarthub-backend/internal/auth"
	"smarthub-backend/internal/transport"
)

// ErrAccountDisabled is returned by an AccountCheck for accounts that are
// inactive or no longer exist.
var ErrAccountDisabled = errors.New("account disabled")

// AccountCheck returns the current role of an account.
type AccountCheck func(ctx context.Context, adminID string) (string, error)

type Identity struct {
	AdminID string
	Role    string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.AdminID != ""
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func identityFromRequest(r *http.Request, manager *auth.Manager) (Identity, bool) {
	token := bearerToken(r)
	if token == "" || manager == nil {
		return Identity{}, false
	}
	claims, err := manager.Parse(token)
	if err != nil {
		return Identity{}, false
	}
	return Identity{AdminID: claims.Subject, Role: claims.Role}, true
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFromRequest(r, manager)
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireActive must run after RequireAuth. It reloads the account so a
// disabled admin loses access before the token expires, and refreshes the
// role carried by the token.
func RequireActive(check AccountCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			role, err := check(r.Context(), id.AdminID)
			if err != nil {
				if errors.Is(err, ErrAccountDisabled) {
					transport.WriteError(w, http.StatusForbidden, "account disabled", nil)
					return
				}
				transport.WriteInternal(w)
				return
			}
			if role != "" {
				id.Role = role
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth attaches the identity when a valid token is sent and otherwise
// lets the request through as public.
func OptionalAuth(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := identityFromRequest(r, manager); ok {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if id.Role != role {
				transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
