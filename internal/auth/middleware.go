package auth

import (
	"context"
	"net/http"

	"ms-registration/internal/logger"
	"ms-registration/internal/utils"
)

type contextKey string

const claimsKey contextKey = "claims"

// Middleware rejects requests without a valid bearer token and stores the
// claims on the request context.
func Middleware(issuer *TokenIssuer, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, http.StatusUnauthorized, err.Error(), "unauthorized")
				return
			}
			claims, err := issuer.Parse(raw)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", err.Error())
				utils.WriteError(w, http.StatusUnauthorized, "invalid token", "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole must run after Middleware.
func RequireRole(role string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Role(r.Context()) != role {
				log.LogSecurity("FORBIDDEN", UserID(r.Context())+" "+r.Method+" "+r.URL.Path)
				utils.WriteError(w, http.StatusForbidden, "insufficient permissions", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if c := ClaimsFrom(ctx); c != nil {
		return c.Subject
	}
	return ""
}

func UserEmail(ctx context.Context) string {
	if c := ClaimsFrom(ctx); c != nil {
		return c.Email
	}
	return ""
}

func Role(ctx context.Context) string {
	if c := ClaimsFrom(ctx); c != nil {
		return c.Role
	}
	return ""
}
