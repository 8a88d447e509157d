package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
)

type productSalesResponse struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

type statusCountResponse struct {
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

type regionSalesResponse struct {
	Region  string  `json:"region"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

type salesReportResponse struct {
	From           *time.Time                     `json:"from,omitempty"`
	To             *time.Time                     `json:"to,omitempty"`
	TotalOrders    int                            `json:"total_orders"`
	OrdersByStatus map[string]statusCountResponse `json:"orders_by_status"`
	Revenue        float64                        `json:"revenue"`
	Collected      float64                        `json:"collected"`
	Outstanding    float64                        `json:"outstanding"`
	DiscountTotal  float64                        `json:"discount_total"`
	ShippingTotal  float64                        `json:"shipping_total"`
	AverageOrder   float64                        `json:"average_order"`
	TopProducts    []productSalesResponse         `json:"top_products"`
	SalesByRegion  []regionSalesResponse          `json:"sales_by_region"`
}

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	from, err := timeParam(r, "from")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	to, err := timeParam(r, "to")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sum, err := h.reports.Summarize(r.Context(), from, to, limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := salesReportResponse{
		From:           sum.From,
		To:             sum.To,
		TotalOrders:    sum.TotalOrders,
		OrdersByStatus: make(map[string]statusCountResponse, len(sum.OrdersByStatus)),
		Revenue:        sum.Revenue.InexactFloat64(),
		Collected:      sum.Collected.InexactFloat64(),
		Outstanding:    sum.Outstanding.InexactFloat64(),
		DiscountTotal:  sum.DiscountTotal.InexactFloat64(),
		ShippingTotal:  sum.ShippingTotal.InexactFloat64(),
		AverageOrder:   sum.AverageOrder.InexactFloat64(),
		TopProducts:    make([]productSalesResponse, 0, len(sum.TopProducts)),
		SalesByRegion:  make([]regionSalesResponse, 0, len(sum.SalesByRegion)),
	}
	for status, n := range sum.OrdersByStatus {
		sc := statusCountResponse{Count: n}
		if sum.TotalOrders > 0 {
			sc.Share = math.Round(float64(n)/float64(sum.TotalOrders)*10000) / 10000
		}
		resp.OrdersByStatus[string(status)] = sc
	}
	for _, ps := range sum.TopProducts {
		resp.TopProducts = append(resp.TopProducts, productSalesResponse{
			SKU:      ps.SKU,
			Name:     ps.Name,
			Quantity: ps.Quantity,
			Revenue:  ps.Revenue.InexactFloat64(),
		})
	}
	for _, rs := range sum.SalesByRegion {
		resp.SalesByRegion = append(resp.SalesByRegion, regionSalesResponse{
			Region:  rs.Region,
			Orders:  rs.Orders,
			Revenue: rs.Revenue.InexactFloat64(),
		})
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// timeParam parses an optional RFC 3339 query parameter.
func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// limitParam parses the optional top-products bound. Zero means unbounded.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.Errorf("limit must be a positive integer, got %q", raw)
	}
	return n, nil
}
