// Package httpapi exposes the storefront over a JSON HTTP API.
package httpapi

import (
	"net/http"

	"github.com/lojinha-dev/lojinha/internal/domain/cart"
	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/order"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
	"github.com/lojinha-dev/lojinha/internal/domain/report"
	"github.com/lojinha-dev/lojinha/internal/domain/shipping"
)

// Handler holds the services behind the HTTP API and maps requests onto them.
type Handler struct {
	products  product.Repository
	customers customer.Repository
	carts     *cart.Service
	orders    *order.Service
	reports   *report.Service
	estimator *shipping.Estimator
	security  *Security
}

// NewHandler creates a Handler over the given services. security guards the
// back-office routes; the storefront routes are public.
func NewHandler(
	products product.Repository,
	customers customer.Repository,
	carts *cart.Service,
	orders *order.Service,
	reports *report.Service,
	estimator *shipping.Estimator,
	security *Security,
) *Handler {
	return &Handler{
		products:  products,
		customers: customers,
		carts:     carts,
		orders:    orders,
		reports:   reports,
		estimator: estimator,
		security:  security,
	}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{sku}", h.getProduct)

	mux.HandleFunc("POST /api/customers", h.createCustomer)
	mux.HandleFunc("GET /api/customers/{id}", h.getCustomer)

	mux.HandleFunc("GET /api/shipping/estimate", h.estimateShipping)

	mux.HandleFunc("GET /api/customers/{id}/cart", h.showCart)
	mux.HandleFunc("POST /api/customers/{id}/cart/items", h.addCartItem)
	mux.HandleFunc("PUT /api/customers/{id}/cart/items/{sku}", h.setCartQuantity)
	mux.HandleFunc("DELETE /api/customers/{id}/cart/items/{sku}", h.removeCartItem)

	mux.HandleFunc("POST /api/orders", h.checkout)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/payments", h.registerPayment)
	mux.HandleFunc("POST /api/orders/{id}/payments/{paymentID}/refund", h.refundPayment)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)

	// Back-office routes require an API key.
	mux.HandleFunc("POST /api/orders/{id}/ship", h.security.Require(h.shipOrder))
	mux.HandleFunc("POST /api/orders/{id}/deliver", h.security.Require(h.deliverOrder))
	mux.HandleFunc("GET /api/reports/sales", h.security.Require(h.salesReport))
}
