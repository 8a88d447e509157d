package order

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supported payment methods.
const (
	MethodPix    = "PIX"
	MethodCredit = "CREDIT"
	MethodDebit  = "DEBIT"
	MethodBoleto = "BOLETO"
)

var (
	// ErrAlreadyConfirmed is returned when confirming a payment twice.
	ErrAlreadyConfirmed = errors.New("payment already confirmed")
	// ErrAlreadyRefunded is returned when refunding a payment twice.
	ErrAlreadyRefunded = errors.New("payment already refunded")
	// ErrFullyPaid is returned when a payment is offered to an order with no
	// outstanding balance.
	ErrFullyPaid = errors.New("order is already fully paid")
)

// Payment is a single payment attempt against an order. A payment counts
// toward the order's total once confirmed and stops counting once refunded.
type Payment struct {
	ID        string
	OrderID   string
	Method    string
	Amount    decimal.Decimal
	PaidAt    *time.Time
	Confirmed bool
	Refunded  bool
}

// NewPayment validates and creates a pending payment. The method is
// normalized to upper case and must be one of the supported methods; the
// amount must be positive.
func NewPayment(orderID string, amount decimal.Decimal, method string) (*Payment, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case MethodPix, MethodCredit, MethodDebit, MethodBoleto:
	default:
		return nil, errors.Errorf("unsupported payment method %q", method)
	}
	if !amount.IsPositive() {
		return nil, errors.Errorf("payment amount must be greater than zero, got %s", amount)
	}
	return &Payment{
		ID:      uuid.NewString(),
		OrderID: orderID,
		Method:  method,
		Amount:  amount.Round(2),
	}, nil
}

// Confirm registers the payment against the order. It rejects amounts above
// the outstanding balance and orders that are already settled, so the paid
// total can never overshoot.
func (p *Payment) Confirm(o *Order, now time.Time) error {
	if p.Confirmed {
		return ErrAlreadyConfirmed
	}
	if p.Refunded {
		return ErrPaymentRefunded
	}
	outstanding := o.OutstandingBalance()
	if !outstanding.IsPositive() {
		return ErrFullyPaid
	}
	if p.Amount.GreaterThan(outstanding) {
		return errors.Errorf("payment of %s exceeds outstanding balance of %s",
			p.Amount.StringFixed(2), outstanding.StringFixed(2))
	}
	return o.RegisterPayment(p, now)
}

// Refund reverses a confirmed payment on the order.
func (p *Payment) Refund(o *Order, now time.Time) error {
	if !p.Confirmed {
		return errors.New("cannot refund a payment that was never confirmed")
	}
	if p.Refunded {
		return ErrAlreadyRefunded
	}
	return o.RegisterRefund(p, now)
}
