package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/cart"
	"github.com/lojinha-dev/lojinha/internal/domain/coupon"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
	"github.com/lojinha-dev/lojinha/internal/domain/shipping"
)

// Service drives the order lifecycle: checkout, payments, shipping and
// cancellation. It owns the persistence choreography around the aggregate,
// keeping product stock and coupon counters in sync with status changes.
type Service struct {
	orders    Repository
	products  product.Repository
	coupons   coupon.Repository
	carts     cart.Repository
	estimator *shipping.Estimator

	now func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	orders Repository,
	products product.Repository,
	coupons coupon.Repository,
	carts cart.Repository,
	estimator *shipping.Estimator,
) *Service {
	return &Service{
		orders:    orders,
		products:  products,
		coupons:   coupons,
		carts:     carts,
		estimator: estimator,
		now:       time.Now,
	}
}

// Checkout turns the customer's active cart into an order. addressID selects
// a delivery address (empty means the customer's first); couponCode is
// optional. The cart is emptied and persisted on success.
func (s *Service) Checkout(ctx context.Context, customerID, addressID, couponCode string) (*Order, error) {
	crt, err := s.carts.GetActiveByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "get active cart")
	}
	if len(crt.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if crt.Customer == nil || len(crt.Customer.Addresses) == 0 {
		return nil, ErrNoAddress
	}

	addr := crt.Customer.Addresses[0]
	if addressID != "" {
		addr, err = crt.Customer.AddressByID(addressID)
		if err != nil {
			return nil, err
		}
	}

	quote, err := s.estimator.Estimate(addr.Region)
	if err != nil {
		return nil, errors.Wrap(err, "estimate shipping")
	}

	var cp *coupon.Coupon
	if couponCode != "" {
		cp, err = s.coupons.FindByCode(ctx, couponCode)
		if err != nil {
			return nil, errors.Wrapf(err, "find coupon %s", couponCode)
		}
	}

	o, err := NewFromCart(crt, &addr, &quote, cp, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if err := s.carts.Save(ctx, crt); err != nil {
		return nil, errors.Wrap(err, "save cleared cart")
	}
	if o.Coupon != nil && o.Discount.IsPositive() {
		if err := s.coupons.IncrementUses(ctx, o.Coupon.Code); err != nil {
			return nil, errors.Wrapf(err, "increment uses of coupon %s", o.Coupon.Code)
		}
	}
	return o, nil
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return o, nil
}

// RegisterPayment creates and confirms a payment against the order, persists
// the order, and persists stock changes when the order crosses the PAID
// boundary in either direction.
func (s *Service) RegisterPayment(ctx context.Context, orderID string, amount decimal.Decimal, method string) (*Payment, *Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "get order %s", orderID)
	}

	p, err := NewPayment(o.ID, amount, method)
	if err != nil {
		return nil, nil, err
	}

	prev := o.Status
	if err := p.Confirm(o, s.now()); err != nil {
		return nil, nil, err
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, nil, errors.Wrap(err, "update order")
	}
	if err := s.saveStockIfCrossedPaid(ctx, o, prev); err != nil {
		return nil, nil, err
	}
	return p, o, nil
}

// RefundPayment reverses a confirmed payment, persisting the order and any
// stock restoration.
func (s *Service) RefundPayment(ctx context.Context, orderID, paymentID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}

	var p *Payment
	for _, candidate := range o.Payments {
		if candidate.ID == paymentID {
			p = candidate
			break
		}
	}
	if p == nil {
		return nil, errors.Errorf("payment %s not found on order %s", paymentID, orderID)
	}

	prev := o.Status
	if err := p.Refund(o, s.now()); err != nil {
		return nil, err
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	if err := s.saveStockIfCrossedPaid(ctx, o, prev); err != nil {
		return nil, err
	}
	return o, nil
}

// Ship moves a fully paid order to SHIPPED, generating a tracking code when
// none is given.
func (s *Service) Ship(ctx context.Context, orderID, trackingCode string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	if err := o.MarkShipped(trackingCode, s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Deliver moves a shipped order to DELIVERED.
func (s *Service) Deliver(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	if err := o.MarkDelivered(s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Cancel aborts the order, restoring stock when it was fully paid.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}

	prev := o.Status
	if err := o.Cancel(reason, s.now()); err != nil {
		return nil, err
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	if prev == StatusPaid {
		if err := s.saveLineProducts(ctx, o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (s *Service) saveStockIfCrossedPaid(ctx context.Context, o *Order, prev Status) error {
	crossed := (prev == StatusPaid) != (o.Status == StatusPaid)
	if !crossed {
		return nil
	}
	return s.saveLineProducts(ctx, o)
}

func (s *Service) saveLineProducts(ctx context.Context, o *Order) error {
	for _, l := range o.Lines {
		if l.Product == nil {
			continue
		}
		if err := s.products.Save(ctx, l.Product); err != nil {
			return errors.Wrapf(err, "save product %s", l.SKU)
		}
	}
	return nil
}
