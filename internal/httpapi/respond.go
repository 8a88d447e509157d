package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lojinha-dev/lojinha/internal/domain/cart"
	"github.com/lojinha-dev/lojinha/internal/domain/coupon"
	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/order"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("Encoding response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, message)
	}
	respondJSON(w, r, status, errorResponse{Code: status, Message: message})
}

// respondDomainError maps domain errors onto HTTP status codes: missing
// entities to 404, impossible state transitions to 409, business rule
// violations to 422, everything else to 400 or 500.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		respondError(w, r, http.StatusNotFound, err.Error())
		return
	}

	var (
		itemErr  *cart.ItemNotFoundError
		stockErr *order.InsufficientStockError
		transErr *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &itemErr):
		respondError(w, r, http.StatusNotFound, itemErr.Error())
	case errors.As(err, &stockErr):
		respondError(w, r, http.StatusUnprocessableEntity, stockErr.Error())
	case errors.As(err, &transErr):
		respondError(w, r, http.StatusConflict, transErr.Error())
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrNoAddress),
		errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrFullyPaid),
		errors.Is(err, order.ErrPaymentRefunded),
		errors.Is(err, coupon.ErrUsageLimitExceeded):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}
