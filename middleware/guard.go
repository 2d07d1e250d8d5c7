package middleware

import (
	"net/http"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/MrEthical07/folioAuth/route"
)

// ErrorWriter renders an API error. httpapi supplies one that writes its
// JSON envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// PlainErrorWriter writes the public message for err with a status derived
// from its failure kind.
func PlainErrorWriter(w http.ResponseWriter, _ *http.Request, err error) {
	kind := folioAuth.KindOf(err)
	status := http.StatusForbidden
	if kind == folioAuth.FailureUnauthenticated {
		status = http.StatusUnauthorized
	}
	http.Error(w, folioAuth.PublicMessage(kind), status)
}

// SubjectOf reduces claims to the fields the route authorizer reads.
func SubjectOf(c folioAuth.SessionClaims, ok bool) route.Subject {
	if !ok || c.AccountID == "" {
		return route.Anonymous
	}
	return route.Subject{
		Authenticated: true,
		Admin:         c.IsAdmin(),
		Banned:        c.IsBanned(),
	}
}

// Gate redirects page navigations according to a. It must run after
// [Session].
func Gate(a *route.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			d := a.Check(r.URL.Path, SubjectOf(claims, ok))
			if !d.Allow {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects anonymous and banned callers.
func RequireSession(onError ErrorWriter) func(http.Handler) http.Handler {
	return require(onError, false)
}

// RequireAdmin rejects anonymous, banned and non-admin callers.
func RequireAdmin(onError ErrorWriter) func(http.Handler) http.Handler {
	return require(onError, true)
}

func require(onError ErrorWriter, admin bool) func(http.Handler) http.Handler {
	if onError == nil {
		onError = PlainErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			switch {
			case !ok || claims.AccountID == "":
				onError(w, r, folioAuth.ErrUnauthenticated)
			case claims.IsBanned():
				onError(w, r, folioAuth.ErrAccountBanned)
			case admin && !claims.IsAdmin():
				onError(w, r, folioAuth.ErrForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
