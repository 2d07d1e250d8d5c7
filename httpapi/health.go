package httpapi

import "net/http"

type healthResponse struct {
	Status      string `json:"status"`
	Store       bool   `json:"store"`
	RateLimiter *bool  `json:"rate_limiter,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	hs := h.engine.Health(r.Context())

	resp := healthResponse{Status: "ok", Store: hs.StoreAvailable}
	if hs.RateLimiterConfigured {
		up := hs.RateLimiterAvailable
		resp.RateLimiter = &up
	}

	status := http.StatusOK
	if !hs.Ready {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
