package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/MrEthical07/folioAuth/middleware"
)

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type adminAccountView struct {
	accountView
	EmailVerified    bool      `json:"email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	Provider         string    `json:"provider,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// adminError reports a missing target account as 404. Elsewhere an unknown
// account is folded into invalid credentials.
func (h *handler) adminError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, folioAuth.ErrAccountNotFound) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{Code: "not_found", Message: "account not found"}})
		return
	}
	h.errs.write(w, r, err)
}

func (h *handler) adminAction(fn func(r *http.Request, actorID, targetID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.ClaimsFromContext(r.Context())
		if err := fn(r, claims.AccountID, chi.URLParam(r, "id")); err != nil {
			h.adminError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handler) adminBan(w http.ResponseWriter, r *http.Request) {
	h.adminAction(func(r *http.Request, actor, target string) error {
		return h.engine.BanAccount(r.Context(), actor, target)
	})(w, r)
}

func (h *handler) adminUnban(w http.ResponseWriter, r *http.Request) {
	h.adminAction(func(r *http.Request, actor, target string) error {
		return h.engine.UnbanAccount(r.Context(), actor, target)
	})(w, r)
}

func (h *handler) adminDelete(w http.ResponseWriter, r *http.Request) {
	h.adminAction(func(r *http.Request, actor, target string) error {
		return h.engine.DeleteAccount(r.Context(), actor, target)
	})(w, r)
}

func (h *handler) adminSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decode(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	h.adminAction(func(r *http.Request, actor, target string) error {
		return h.engine.SetRole(r.Context(), actor, target, folioAuth.Role(req.Role))
	})(w, r)
}

func (h *handler) adminGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.engine.Account(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adminAccountView{
		accountView: accountView{
			ID:        acct.ID,
			Email:     acct.Email,
			Name:      acct.Name,
			Role:      string(acct.Role),
			Status:    string(acct.Status),
			AvatarURL: acct.AvatarURL,
		},
		EmailVerified:    acct.EmailVerified,
		TwoFactorEnabled: acct.TwoFactorEnabled,
		Provider:         acct.Provider,
		CreatedAt:        acct.CreatedAt,
		UpdatedAt:        acct.UpdatedAt,
	})
}
