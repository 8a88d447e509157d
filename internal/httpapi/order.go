package httpapi

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/order"
)

type orderLineResponse struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

type paymentResponse struct {
	ID        string     `json:"id"`
	Method    string     `json:"method"`
	Amount    float64    `json:"amount"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	Confirmed bool       `json:"confirmed"`
	Refunded  bool       `json:"refunded"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	Status          string              `json:"status"`
	Lines           []orderLineResponse `json:"lines"`
	DeliveryAddress addressResponse     `json:"delivery_address"`
	Subtotal        float64             `json:"subtotal"`
	Discount        float64             `json:"discount"`
	ShippingCost    float64             `json:"shipping_cost"`
	Total           float64             `json:"total"`
	TotalPaid       float64             `json:"total_paid"`
	Outstanding     float64             `json:"outstanding"`
	CouponCode      string              `json:"coupon_code,omitempty"`
	TrackingCode    string              `json:"tracking_code,omitempty"`
	Payments        []paymentResponse   `json:"payments"`
	CreatedAt       time.Time           `json:"created_at"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		Status:          string(o.Status),
		Lines:           make([]orderLineResponse, 0, len(o.Lines)),
		DeliveryAddress: toAddressResponse(o.DeliveryAddress),
		Subtotal:        o.Subtotal.InexactFloat64(),
		Discount:        o.Discount.InexactFloat64(),
		ShippingCost:    o.ShippingCost.InexactFloat64(),
		Total:           o.Total.InexactFloat64(),
		TotalPaid:       o.TotalPaid.InexactFloat64(),
		Outstanding:     o.OutstandingBalance().InexactFloat64(),
		TrackingCode:    o.TrackingCode,
		Payments:        make([]paymentResponse, 0, len(o.Payments)),
		CreatedAt:       o.CreatedAt,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
	}
	if o.Coupon != nil {
		resp.CouponCode = o.Coupon.Code
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			SKU:       l.SKU,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.InexactFloat64(),
			Total:     l.Total().InexactFloat64(),
		})
	}
	for _, p := range o.Payments {
		resp.Payments = append(resp.Payments, paymentResponse{
			ID:        p.ID,
			Method:    p.Method,
			Amount:    p.Amount.InexactFloat64(),
			PaidAt:    p.PaidAt,
			Confirmed: p.Confirmed,
			Refunded:  p.Refunded,
		})
	}
	return resp
}

type checkoutRequest struct {
	CustomerID string
	AddressID  string
	CouponCode string
}

func (c *checkoutRequest) decode(r *http.Request) error {
	return decodeObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "customer_id":
			c.CustomerID, err = d.Str()
		case "address_id":
			c.AddressID, err = d.Str()
		case "coupon_code":
			c.CouponCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := req.decode(r); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Checkout(r.Context(), req.CustomerID, req.AddressID, req.CouponCode)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

type paymentRequest struct {
	Amount decimal.Decimal
	Method string
}

func (p *paymentRequest) decode(r *http.Request) error {
	return decodeObject(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "amount":
			p.Amount, err = decimalField(d)
		case "method":
			p.Method, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := req.decode(r); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, o, err := h.orders.RegisterPayment(r.Context(), r.PathValue("id"), req.Amount, req.Method)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, struct {
		Payment paymentResponse `json:"payment"`
		Order   orderResponse   `json:"order"`
	}{
		Payment: paymentResponse{
			ID:        p.ID,
			Method:    p.Method,
			Amount:    p.Amount.InexactFloat64(),
			PaidAt:    p.PaidAt,
			Confirmed: p.Confirmed,
		},
		Order: toOrderResponse(o),
	})
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RefundPayment(r.Context(), r.PathValue("id"), r.PathValue("paymentID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct{ Reason string }
	err := decodeObject(r, func(d *jx.Decoder, key string) (err error) {
		if key == "reason" {
			req.Reason, err = d.Str()
			return err
		}
		return d.Skip()
	})
	// A body is optional on cancellation.
	if err != nil && r.ContentLength > 0 {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	var req struct{ TrackingCode string }
	err := decodeObject(r, func(d *jx.Decoder, key string) (err error) {
		if key == "tracking_code" {
			req.TrackingCode, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil && r.ContentLength > 0 {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Ship(r.Context(), r.PathValue("id"), req.TrackingCode)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Deliver(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}
