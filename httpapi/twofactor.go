package httpapi

import (
	"net/http"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/MrEthical07/folioAuth/middleware"
)

type twoFactorSetupResponse struct {
	ProvisioningURI string `json:"provisioning_uri"`
	SharedSecret    string `json:"shared_secret"`
	QRCode          string `json:"qr_code,omitempty"`
}

type twoFactorVerifyRequest struct {
	Code string `json:"code" validate:"required,numeric,min=6,max=8"`
}

func (h *handler) setupTwoFactor(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	setup, err := h.engine.EnrollTwoFactor(r.Context(), claims.AccountID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorSetupResponse{
		ProvisioningURI: setup.ProvisioningURI,
		SharedSecret:    setup.SharedSecret,
		QRCode:          setup.QRCodeDataURL,
	})
}

// verifyTwoFactor confirms enrollment. A wrong code is a 400 here, not the
// 401 it is at login.
func (h *handler) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	var req twoFactorVerifyRequest
	if err := decode(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	if err := h.engine.ConfirmTwoFactor(r.Context(), claims.AccountID, req.Code); err != nil {
		status := 0
		if folioAuth.KindOf(err) == folioAuth.FailureBadTwoFactor {
			status = http.StatusBadRequest
		}
		h.errs.writeStatus(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": true})
}

func (h *handler) twoFactorStatus(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	enabled, err := h.engine.TwoFactorStatus(r.Context(), claims.AccountID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": enabled})
}
