package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/MrEthical07/folioAuth/middleware"
	"github.com/MrEthical07/folioAuth/oauth"
)

func (h *handler) oauthStart(w http.ResponseWriter, r *http.Request) {
	err := h.oauth.Start(w, r, chi.URLParam(r, "provider"))
	if errors.Is(err, oauth.ErrUnknownProvider) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{Code: "not_found", Message: "unknown provider"}})
		return
	}
	if err != nil {
		h.errs.write(w, r, err)
	}
}

// oauthCallback finishes the handshake, links the identity to an account
// and mints the session. Failures send the browser back to the login page.
func (h *handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	identity, err := h.oauth.Callback(w, r, provider)
	if errors.Is(err, oauth.ErrUnknownProvider) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{Code: "not_found", Message: "unknown provider"}})
		return
	}
	if err != nil {
		h.oauthFailed(w, r, provider, err)
		return
	}

	p, err := h.engine.LinkExternalIdentity(r.Context(), identity)
	if errors.Is(err, folioAuth.ErrAccountBanned) {
		http.Redirect(w, r, h.pages.Banned, http.StatusFound)
		return
	}
	if err != nil {
		h.oauthFailed(w, r, provider, err)
		return
	}

	if _, err := middleware.SetSessionCookie(w, h.engine, folioAuth.BuildInitialClaims(*p)); err != nil {
		h.oauthFailed(w, r, provider, err)
		return
	}
	http.Redirect(w, r, h.pages.Dashboard, http.StatusFound)
}

func (h *handler) oauthFailed(w http.ResponseWriter, r *http.Request, provider string, err error) {
	kind := folioAuth.KindOf(err)
	h.logger.WarnContext(r.Context(), "oauth sign-in failed",
		slog.String("provider", provider),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
	q := url.Values{}
	q.Set("error", errorCode(kind))
	http.Redirect(w, r, h.pages.Login+"?"+q.Encode(), http.StatusFound)
}
