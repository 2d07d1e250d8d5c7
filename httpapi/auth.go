package httpapi

import (
	"net/http"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/MrEthical07/folioAuth/middleware"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	AccountID      string `json:"account_id"`
	Role           string `json:"role"`
	AdminBootstrap bool   `json:"admin_bootstrap"`
	Message        string `json:"message"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
	Code     string `json:"code" validate:"omitempty,numeric,min=6,max=8"`
}

type accountView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type loginResponse struct {
	Account      accountView `json:"account"`
	SessionToken string      `json:"session_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

type sessionResponse struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

const (
	msgAdminCreated     = "admin account created"
	msgVerificationSent = "account created, check your email to verify your address"
	msgResetRequested   = "if the address is registered, a reset link has been sent"
	msgResendRequested  = "if the address needs verification, a new link has been sent"
)

func viewOf(p *folioAuth.Principal) accountView {
	return accountView{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      string(p.Role),
		Status:    string(p.Status),
		AvatarURL: p.AvatarURL,
	}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	res, err := h.engine.Register(r.Context(), folioAuth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	msg := msgVerificationSent
	if res.AdminBootstrap {
		msg = msgAdminCreated
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		AccountID:      res.AccountID,
		Role:           string(res.Role),
		AdminBootstrap: res.AdminBootstrap,
		Message:        msg,
	})
}

// login authenticates credentials and mints the session. A missing code for
// an account with two-factor enabled yields 401 two_factor_required so the
// client can re-prompt without asking for the password again.
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	p, err := h.engine.Authenticate(r.Context(), req.Email, req.Password, req.Code)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	token, err := middleware.SetSessionCookie(w, h.engine, folioAuth.BuildInitialClaims(*p))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Account:      viewOf(p),
		SessionToken: token,
		RefreshToken: p.RefreshToken,
	})
}

func (h *handler) logout(w http.ResponseWriter, _ *http.Request) {
	middleware.ClearSessionCookie(w, h.engine.SessionConfig())
	w.WriteHeader(http.StatusNoContent)
}

// session reports the caller's refreshed claims. Banned callers get their
// claims too so the client can route them to the banned page.
func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.AccountID == "" {
		h.errs.write(w, r, folioAuth.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccountID: claims.AccountID,
		Role:      string(claims.Role),
		Status:    string(claims.Status),
	})
}

func (h *handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.engine.ResendVerification(r.Context(), req.Email); err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: msgResendRequested})
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.engine.ForgotPassword(r.Context(), req.Email); err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgResetRequested})
}

func (h *handler) validateToken(w http.ResponseWriter, r *http.Request) {
	valid, err := h.engine.ValidateResetToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.engine.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}
