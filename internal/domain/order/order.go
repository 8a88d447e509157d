package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/cart"
	"github.com/lojinha-dev/lojinha/internal/domain/coupon"
	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
	"github.com/lojinha-dev/lojinha/internal/domain/shipping"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusCreated        Status = "CREATED"
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPartiallyPaid  Status = "PARTIALLY_PAID"
	StatusPaid           Status = "PAID"
	StatusShipped        Status = "SHIPPED"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// paymentPhase reports whether the order still accepts payments and refunds.
// Once shipped, the money side of the order is settled.
func (s Status) paymentPhase() bool {
	switch s {
	case StatusCreated, StatusPendingPayment, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

// cancellable reports whether the order may still be cancelled. Shipped,
// delivered and already-cancelled orders may not.
func (s Status) cancellable() bool {
	switch s {
	case StatusCreated, StatusPendingPayment, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when a checkout is attempted on an empty cart.
	ErrEmptyCart = errors.New("cannot create an order from an empty cart")
	// ErrNoAddress is returned when the customer has no delivery address.
	ErrNoAddress = errors.New("customer has no delivery address")
	// ErrPaymentRefunded is returned when a refunded payment is offered for
	// registration.
	ErrPaymentRefunded = errors.New("payment has been refunded")
)

// InsufficientStockError reports the first order line whose quantity exceeds
// the product's available stock.
type InsufficientStockError struct {
	SKU       string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d",
		e.Name, e.SKU, e.Requested, e.Available)
}

// InvalidTransitionError reports an action attempted from a status that does
// not allow it.
type InvalidTransitionError struct {
	From   Status
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %s", e.Action, e.From)
}

// Line is an order line frozen at checkout time. Name, Category and UnitPrice
// are snapshots; Product points at the live product for stock movements and
// may be nil when the order is loaded without product hydration.
type Line struct {
	Product   *product.Product
	SKU       string
	Name      string
	Category  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Total returns quantity * unit price for this line.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the checkout aggregate. Money fields satisfy
// total = max(0, subtotal - discount + shipping cost), and TotalPaid is the
// sum of confirmed, non-refunded payments.
type Order struct {
	ID              string
	Customer        *customer.Customer
	Lines           []Line
	DeliveryAddress customer.Address
	Shipping        *shipping.Quote
	Coupon          *coupon.Coupon

	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
	TotalPaid    decimal.Decimal

	Status       Status
	Payments     []*Payment
	TrackingCode string
	CancelReason string

	CreatedAt   time.Time
	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// NewFromCart checks out a cart into a new order. Validation runs in a fixed
// sequence: empty cart, missing address, then per-line stock. Lines are
// snapshotted, the coupon is attached and consumes a use only when it yields a
// positive discount, and the cart is cleared on success. No stock is deducted
// here; that happens when the order becomes fully paid.
func NewFromCart(crt *cart.Cart, addr *customer.Address, quote *shipping.Quote, cp *coupon.Coupon, now time.Time) (*Order, error) {
	if crt == nil || len(crt.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if crt.Customer == nil || len(crt.Customer.Addresses) == 0 {
		return nil, ErrNoAddress
	}

	delivery := crt.Customer.Addresses[0]
	if addr != nil {
		delivery = *addr
	}

	lines := make([]Line, 0, len(crt.Lines))
	for _, l := range crt.Lines {
		if l.Quantity > l.Product.Stock {
			return nil, &InsufficientStockError{
				SKU:       l.Product.SKU,
				Name:      l.Product.Name,
				Requested: l.Quantity,
				Available: l.Product.Stock,
			}
		}
		lines = append(lines, Line{
			Product:   l.Product,
			SKU:       l.Product.SKU,
			Name:      l.Product.Name,
			Category:  l.Product.Category,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	o := &Order{
		ID:              uuid.NewString(),
		Customer:        crt.Customer,
		Lines:           lines,
		DeliveryAddress: delivery,
		Shipping:        quote,
		Status:          StatusCreated,
		CreatedAt:       now,
	}
	if quote != nil {
		o.ShippingCost = quote.Cost
	}
	o.Subtotal = o.linesSubtotal()

	if cp != nil && cp.ValidForOrder(o.categories(), now) {
		o.Coupon = cp
		o.Discount = cp.DiscountForOrder(o.Subtotal, o.ShippingCost, o.categories(), now)
		if o.Discount.IsPositive() {
			if err := cp.RegisterUse(); err != nil {
				return nil, errors.Wrapf(err, "register use of coupon %s", cp.Code)
			}
		}
	}

	o.Total = floorAtZero(o.Subtotal.Sub(o.Discount).Add(o.ShippingCost)).Round(2)
	crt.Clear()
	return o, nil
}

// Recalculate recomputes subtotal, discount, shipping cost and total from the
// order's current lines, quote and coupon. It is idempotent and never touches
// payments or status.
func (o *Order) Recalculate(ref time.Time) {
	o.Subtotal = o.linesSubtotal()
	if o.Shipping != nil {
		o.ShippingCost = o.Shipping.Cost
	} else {
		o.ShippingCost = decimal.Zero
	}
	if o.Coupon != nil {
		o.Discount = o.Coupon.DiscountForOrder(o.Subtotal, o.ShippingCost, o.categories(), ref)
	} else {
		o.Discount = decimal.Zero
	}
	o.Total = floorAtZero(o.Subtotal.Sub(o.Discount).Add(o.ShippingCost)).Round(2)
}

// OutstandingBalance is how much remains to be paid, never negative.
func (o *Order) OutstandingBalance() decimal.Decimal {
	return floorAtZero(o.Total.Sub(o.TotalPaid))
}

// RegisterPayment accumulates a confirmed payment into the order and
// recomputes the payment status. Registering the same payment twice is a
// no-op. When the payment would complete the total, stock for every line is
// validated before anything is mutated, so a shortage leaves the order, the
// payment and all products untouched.
func (o *Order) RegisterPayment(p *Payment, now time.Time) error {
	if p.Refunded {
		return ErrPaymentRefunded
	}
	if !o.Status.paymentPhase() {
		return &InvalidTransitionError{From: o.Status, Action: "register a payment on"}
	}
	if o.payment(p.ID) != nil {
		return nil
	}

	paid := o.TotalPaid.Add(p.Amount)
	if o.Status != StatusPaid && paid.GreaterThanOrEqual(o.Total) {
		if err := o.checkStock(); err != nil {
			return err
		}
	}

	p.Confirmed = true
	if p.PaidAt == nil {
		p.PaidAt = &now
	}
	o.Payments = append(o.Payments, p)
	o.TotalPaid = paid
	return o.applyPaymentStatus(now)
}

// RegisterRefund reverses a previously registered payment. Refunding an
// unknown or already-refunded payment is a no-op. Dropping below the total
// moves the order back to a partial status and restores any deducted stock.
func (o *Order) RegisterRefund(p *Payment, now time.Time) error {
	existing := o.payment(p.ID)
	if existing == nil || existing.Refunded {
		return nil
	}
	if !o.Status.paymentPhase() {
		return &InvalidTransitionError{From: o.Status, Action: "refund a payment on"}
	}

	existing.Refunded = true
	p.Refunded = true
	o.TotalPaid = floorAtZero(o.TotalPaid.Sub(existing.Amount))
	return o.applyPaymentStatus(now)
}

// Cancel aborts the order. Cancelling a fully paid order restores the
// deducted stock; shipped, delivered and cancelled orders cannot be
// cancelled.
func (o *Order) Cancel(reason string, now time.Time) error {
	if !o.Status.cancellable() {
		return &InvalidTransitionError{From: o.Status, Action: "cancel"}
	}
	if o.Status == StatusPaid {
		if err := o.restoreStock(); err != nil {
			return err
		}
	}
	o.Status = StatusCancelled
	o.CancelReason = strings.TrimSpace(reason)
	o.CancelledAt = &now
	return nil
}

// MarkShipped moves a fully paid order to SHIPPED. When no tracking code is
// given, one is generated.
func (o *Order) MarkShipped(trackingCode string, now time.Time) error {
	if o.Status != StatusPaid {
		return &InvalidTransitionError{From: o.Status, Action: "ship"}
	}
	trackingCode = strings.TrimSpace(trackingCode)
	if trackingCode == "" {
		trackingCode = generateTrackingCode()
	}
	o.TrackingCode = trackingCode
	o.Status = StatusShipped
	o.ShippedAt = &now
	return nil
}

// MarkDelivered moves a shipped order to DELIVERED.
func (o *Order) MarkDelivered(now time.Time) error {
	if o.Status != StatusShipped {
		return &InvalidTransitionError{From: o.Status, Action: "deliver"}
	}
	o.Status = StatusDelivered
	o.DeliveredAt = &now
	return nil
}

// Summary renders a human-readable receipt of the order.
func (o *Order) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s [%s]\n", o.ID, o.Status)
	if o.Customer != nil {
		fmt.Fprintf(&b, "Customer: %s <%s>\n", o.Customer.Name, o.Customer.Email)
	}
	fmt.Fprintf(&b, "Deliver to: %s\n", o.DeliveryAddress.Format())
	b.WriteString("Items:\n")
	for _, l := range o.Lines {
		fmt.Fprintf(&b, "  %dx %s (%s) @ %s = %s\n",
			l.Quantity, l.Name, l.SKU, l.UnitPrice.StringFixed(2), l.Total().StringFixed(2))
	}
	fmt.Fprintf(&b, "Subtotal:  %s\n", o.Subtotal.StringFixed(2))
	if o.Discount.IsPositive() && o.Coupon != nil {
		fmt.Fprintf(&b, "Discount:  -%s (%s)\n", o.Discount.StringFixed(2), o.Coupon.Code)
	}
	fmt.Fprintf(&b, "Shipping:  %s\n", o.ShippingCost.StringFixed(2))
	fmt.Fprintf(&b, "Total:     %s\n", o.Total.StringFixed(2))
	fmt.Fprintf(&b, "Paid:      %s\n", o.TotalPaid.StringFixed(2))
	if o.TrackingCode != "" {
		fmt.Fprintf(&b, "Tracking:  %s\n", o.TrackingCode)
	}
	return b.String()
}

// applyPaymentStatus recomputes the payment status purely from TotalPaid vs
// Total, deducting stock on entering PAID and restoring it on leaving.
// Callers registering a payment that enters PAID must have validated stock
// beforehand.
func (o *Order) applyPaymentStatus(now time.Time) error {
	prev := o.Status
	switch {
	case !o.TotalPaid.IsPositive():
		o.Status = StatusPendingPayment
	case o.TotalPaid.LessThan(o.Total):
		o.Status = StatusPartiallyPaid
	default:
		o.Status = StatusPaid
	}

	if o.Status == StatusPaid && prev != StatusPaid {
		o.PaidAt = &now
		return o.deductStock()
	}
	if prev == StatusPaid && o.Status != StatusPaid {
		o.PaidAt = nil
		return o.restoreStock()
	}
	return nil
}

func (o *Order) payment(id string) *Payment {
	for _, p := range o.Payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (o *Order) categories() []string {
	cats := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		cats = append(cats, l.Category)
	}
	return cats
}

func (o *Order) linesSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Lines {
		sum = sum.Add(l.Total())
	}
	return sum.Round(2)
}

// checkStock verifies every line fits the current stock without mutating
// anything.
func (o *Order) checkStock() error {
	for _, l := range o.Lines {
		if l.Product == nil {
			return errors.Errorf("order line %s: product not loaded", l.SKU)
		}
		if l.Quantity > l.Product.Stock {
			return &InsufficientStockError{
				SKU:       l.SKU,
				Name:      l.Name,
				Requested: l.Quantity,
				Available: l.Product.Stock,
			}
		}
	}
	return nil
}

func (o *Order) deductStock() error {
	if err := o.checkStock(); err != nil {
		return err
	}
	for _, l := range o.Lines {
		if err := l.Product.AdjustStock(-l.Quantity); err != nil {
			return errors.Wrapf(err, "deduct stock for %s", l.SKU)
		}
	}
	return nil
}

func (o *Order) restoreStock() error {
	for _, l := range o.Lines {
		if l.Product == nil {
			return errors.Errorf("order line %s: product not loaded", l.SKU)
		}
		if err := l.Product.AdjustStock(l.Quantity); err != nil {
			return errors.Wrapf(err, "restore stock for %s", l.SKU)
		}
	}
	return nil
}

func generateTrackingCode() string {
	id := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%x", id[:])[:12])
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ListFilter narrows Repository.List by creation time.
type ListFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Get returns the order with lines hydrated against current products.
	// Returns ErrNotFound when it does not exist.
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	List(ctx context.Context, f ListFilter) ([]*Order, error)
}
