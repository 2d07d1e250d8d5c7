package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	folioAuth "github.com/MrEthical07/folioAuth"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the session claims stored by [Session] or
// [WithClaims].
func ClaimsFromContext(ctx context.Context) (folioAuth.SessionClaims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(folioAuth.SessionClaims)
	return c, ok
}

// WithClaims stores claims in ctx. Sign-in handlers use it so that the rest
// of the request sees the freshly minted claims.
func WithClaims(ctx context.Context, c folioAuth.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// Session resolves the caller's session. Requests without a valid token
// continue anonymously; a token whose account was deleted is cleared. When
// the refreshed role or status differs from the token, a new cookie is
// issued so the change sticks without a second store read.
func Session(engine *folioAuth.Engine, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}
			cfg := engine.SessionConfig()

			token, fromCookie := sessionToken(r, cfg.CookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			prior, err := engine.DecodeSession(token)
			if err != nil {
				if fromCookie {
					ClearSessionCookie(w, cfg)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			claims, err := engine.RefreshClaims(ctx, prior)
			switch {
			case errors.Is(err, folioAuth.ErrAccountNotFound):
				if fromCookie {
					ClearSessionCookie(w, cfg)
				}
				next.ServeHTTP(w, r)
				return
			case err != nil:
				logger.WarnContext(ctx, "session refresh failed, using token claims",
					"account_id", prior.AccountID, "error", err)
				claims = prior
			case fromCookie && (claims.Role != prior.Role || claims.Status != prior.Status):
				if _, err := SetSessionCookie(w, engine, claims); err != nil {
					logger.ErrorContext(ctx, "reissue session cookie failed", "account_id", claims.AccountID, "error", err)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// SetSessionCookie encodes claims and writes the session cookie. It returns
// the encoded token for callers that also hand it out as a bearer token.
func SetSessionCookie(w http.ResponseWriter, engine *folioAuth.Engine, c folioAuth.SessionClaims) (string, error) {
	token, err := engine.EncodeSession(c)
	if err != nil {
		return "", err
	}
	cfg := engine.SessionConfig()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg folioAuth.SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken prefers the cookie and falls back to a bearer token.
func sessionToken(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, false
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
