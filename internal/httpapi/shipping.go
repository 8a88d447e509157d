package httpapi

import (
	"net/http"
)

type shippingEstimateResponse struct {
	Origin       string  `json:"origin"`
	Destination  string  `json:"destination"`
	Cost         float64 `json:"cost"`
	LeadTimeDays int     `json:"lead_time_days"`
}

func (h *Handler) estimateShipping(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	q, err := h.estimator.Estimate(region)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, r, http.StatusOK, shippingEstimateResponse{
		Origin:       q.Origin,
		Destination:  q.Destination,
		Cost:         q.Cost.InexactFloat64(),
		LeadTimeDays: q.LeadTimeDays,
	})
}
