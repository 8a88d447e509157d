package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/lojinha/internal/domain/cart"
	"github.com/lojinha-dev/lojinha/internal/domain/coupon"
	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
	"github.com/lojinha-dev/lojinha/internal/domain/shipping"
)

type memOrders struct {
	orders map[string]*Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*Order)}
}

func (m *memOrders) Create(_ context.Context, o *Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *memOrders) Update(_ context.Context, o *Order) error {
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memOrders) List(_ context.Context, f ListFilter) ([]*Order, error) {
	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		if f.CreatedFrom != nil && o.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && o.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

type memProducts struct {
	products map[string]*product.Product
	saves    int
}

func newMemProducts(ps ...*product.Product) *memProducts {
	m := &memProducts{products: make(map[string]*product.Product)}
	for _, p := range ps {
		m.products[p.SKU] = p
	}
	return m
}

func (m *memProducts) List(_ context.Context) ([]*product.Product, error) {
	out := make([]*product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProducts) GetBySKU(_ context.Context, sku string) (*product.Product, error) {
	p, ok := m.products[sku]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *memProducts) GetBySKUs(_ context.Context, skus []string) ([]*product.Product, error) {
	out := make([]*product.Product, 0, len(skus))
	for _, sku := range skus {
		if p, ok := m.products[sku]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) Save(_ context.Context, p *product.Product) error {
	m.products[p.SKU] = p
	m.saves++
	return nil
}

type memCoupons struct {
	coupons    map[string]*coupon.Coupon
	increments map[string]int
}

func newMemCoupons(cs ...*coupon.Coupon) *memCoupons {
	m := &memCoupons{
		coupons:    make(map[string]*coupon.Coupon),
		increments: make(map[string]int),
	}
	for _, c := range cs {
		m.coupons[c.Code] = c
	}
	return m
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (m *memCoupons) Save(_ context.Context, c *coupon.Coupon) error {
	m.coupons[c.Code] = c
	return nil
}

func (m *memCoupons) IncrementUses(_ context.Context, code string) error {
	if _, ok := m.coupons[code]; !ok {
		return coupon.ErrNotFound
	}
	m.increments[code]++
	return nil
}

type memCarts struct {
	carts map[string]*cart.Cart
}

func newMemCarts(cs ...*cart.Cart) *memCarts {
	m := &memCarts{carts: make(map[string]*cart.Cart)}
	for _, c := range cs {
		m.carts[c.Customer.ID] = c
	}
	return m
}

func (m *memCarts) GetActiveByCustomer(_ context.Context, customerID string) (*cart.Cart, error) {
	c, ok := m.carts[customerID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (m *memCarts) Save(_ context.Context, c *cart.Cart) error {
	m.carts[c.Customer.ID] = c
	return nil
}

var (
	_ Repository         = (*memOrders)(nil)
	_ product.Repository = (*memProducts)(nil)
	_ coupon.Repository  = (*memCoupons)(nil)
	_ cart.Repository    = (*memCarts)(nil)
)

func testEstimator() *shipping.Estimator {
	return shipping.NewEstimator(shipping.RateTable{
		Origin: "CE",
		Regions: map[string]shipping.Rate{
			"CE": {Cost: decimal.NewFromInt(10), LeadTimeDays: 2},
		},
		Default: shipping.Rate{Cost: decimal.NewFromInt(40), LeadTimeDays: 8},
	})
}

type serviceFixture struct {
	svc      *Service
	orders   *memOrders
	products *memProducts
	coupons  *memCoupons
	carts    *memCarts
}

func newServiceFixture(t *testing.T, crt *cart.Cart, cps ...*coupon.Coupon) *serviceFixture {
	t.Helper()

	products := newMemProducts()
	for _, l := range crt.Lines {
		products.products[l.Product.SKU] = l.Product
	}

	f := &serviceFixture{
		orders:   newMemOrders(),
		products: products,
		coupons:  newMemCoupons(cps...),
		carts:    newMemCarts(crt),
	}
	f.svc = NewService(f.orders, f.products, f.coupons, f.carts, testEstimator())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func TestService_Checkout(t *testing.T) {
	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 2})
	f := newServiceFixture(t, crt)

	o, err := f.svc.Checkout(context.Background(), crt.Customer.ID, "", "")
	require.NoError(t, err)

	assert.Equal(t, "200", o.Subtotal.String())
	assert.Equal(t, "10", o.ShippingCost.String(), "rate for the customer's region")
	assert.Equal(t, "210", o.Total.String())

	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
	assert.Empty(t, f.carts.carts[crt.Customer.ID].Lines, "cleared cart is persisted")
}

func TestService_Checkout_CouponPersistsUse(t *testing.T) {
	cp, err := coupon.New("TEN", coupon.TypePercentage, decimal.NewFromInt(10), nil, 5, nil)
	require.NoError(t, err)

	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 2})
	f := newServiceFixture(t, crt, cp)

	o, err := f.svc.Checkout(context.Background(), crt.Customer.ID, "", "TEN")
	require.NoError(t, err)
	assert.Equal(t, "20", o.Discount.String())
	assert.Equal(t, 1, f.coupons.increments["TEN"])
}

func TestService_Checkout_UnknownCoupon(t *testing.T) {
	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 1})
	f := newServiceFixture(t, crt)

	_, err := f.svc.Checkout(context.Background(), crt.Customer.ID, "", "NOPE")
	require.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestService_Checkout_NoCart(t *testing.T) {
	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 1})
	f := newServiceFixture(t, crt)

	_, err := f.svc.Checkout(context.Background(), "someone-else", "", "")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestService_Checkout_SelectsAddress(t *testing.T) {
	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 1})
	sp, err := customer.NewAddress("01000000", "Sao Paulo", "SP", "Av B", "1", "")
	require.NoError(t, err)
	crt.Customer.AddAddress(sp)
	f := newServiceFixture(t, crt)

	o, err := f.svc.Checkout(context.Background(), crt.Customer.ID, sp.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "SP", o.DeliveryAddress.Region)
	assert.Equal(t, "40", o.ShippingCost.String(), "unknown region uses the default rate")

	_, err = f.svc.Checkout(context.Background(), crt.Customer.ID, "missing", "")
	require.Error(t, err)
}

func TestService_PaymentLifecycle(t *testing.T) {
	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 2})
	f := newServiceFixture(t, crt)
	ctx := context.Background()

	o, err := f.svc.Checkout(ctx, crt.Customer.ID, "", "")
	require.NoError(t, err)

	_, o, err = f.svc.RegisterPayment(ctx, o.ID, decimal.NewFromInt(100), "pix")
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyPaid, o.Status)
	assert.Zero(t, f.products.saves, "partial payment must not touch stock")

	p2, o, err := f.svc.RegisterPayment(ctx, o.ID, decimal.NewFromInt(110), MethodCredit)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, 3, f.products.products["SKU-1"].Stock)
	assert.Equal(t, 1, f.products.saves, "stock change is persisted on entering PAID")

	o, err = f.svc.RefundPayment(ctx, o.ID, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyPaid, o.Status)
	assert.Equal(t, 5, f.products.products["SKU-1"].Stock)
}

func TestService_ShipAndDeliver(t *testing.T) {
	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 1})
	f := newServiceFixture(t, crt)
	ctx := context.Background()

	o, err := f.svc.Checkout(ctx, crt.Customer.ID, "", "")
	require.NoError(t, err)
	_, o, err = f.svc.RegisterPayment(ctx, o.ID, o.Total, MethodPix)
	require.NoError(t, err)

	o, err = f.svc.Ship(ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)
	assert.NotEmpty(t, o.TrackingCode)

	o, err = f.svc.Deliver(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestService_CancelPaidRestoresAndPersists(t *testing.T) {
	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 2})
	f := newServiceFixture(t, crt)
	ctx := context.Background()

	o, err := f.svc.Checkout(ctx, crt.Customer.ID, "", "")
	require.NoError(t, err)
	_, o, err = f.svc.RegisterPayment(ctx, o.ID, o.Total, MethodPix)
	require.NoError(t, err)
	require.Equal(t, 3, f.products.products["SKU-1"].Stock)
	savesAfterPaid := f.products.saves

	o, err = f.svc.Cancel(ctx, o.ID, "fraud review")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, 5, f.products.products["SKU-1"].Stock)
	assert.Greater(t, f.products.saves, savesAfterPaid)
}

func TestService_GetUnknown(t *testing.T) {
	crt := testCart(t, cart.Line{Product: testProduct(t, "SKU-1", 100, 5), Quantity: 1})
	f := newServiceFixture(t, crt)

	_, err := f.svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
