package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/coupon"
	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/order"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
	"github.com/lojinha-dev/lojinha/internal/domain/shipping"
)

const (
	orderColumns = `id, customer_id, lines, delivery_address, shipping, coupon_code,
		subtotal, discount, shipping_cost, total, total_paid,
		status, tracking_code, cancel_reason,
		created_at, paid_at, shipped_at, delivered_at, cancelled_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	updateOrderSQL = `UPDATE orders SET
			subtotal = $2, discount = $3, shipping_cost = $4, total = $5, total_paid = $6,
			status = $7, tracking_code = $8, cancel_reason = $9,
			paid_at = $10, shipped_at = $11, delivered_at = $12, cancelled_at = $13
		WHERE id = $1`

	getPaymentsSQL = `SELECT id, method, amount, paid_at, confirmed, refunded
		FROM payments WHERE order_id = $1 ORDER BY paid_at`

	upsertPaymentSQL = `INSERT INTO payments (id, order_id, method, amount, paid_at, confirmed, refunded)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			confirmed = EXCLUDED.confirmed,
			refunded = EXCLUDED.refunded`
)

// orderLineDoc is the JSONB shape of one order line: a snapshot plus the SKU
// used to rehydrate the live product.
type orderLineDoc struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// addressDoc is the JSONB snapshot of the delivery address.
type addressDoc struct {
	ID         string `json:"id"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Region     string `json:"region"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
}

// shippingDoc is the JSONB snapshot of the shipping quote.
type shippingDoc struct {
	Origin       string          `json:"origin"`
	Destination  string          `json:"destination"`
	Cost         decimal.Decimal `json:"cost"`
	LeadTimeDays int             `json:"lead_time_days"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// snapshots, the delivery address and the shipping quote live in JSONB
// columns; payments have their own table.
type OrderRepository struct {
	pool      *pgxpool.Pool
	products  product.Repository
	customers customer.Repository
	coupons   coupon.Repository
}

// NewOrderRepository returns an OrderRepository that uses the given pool and
// hydrates orders through the product, customer and coupon repositories.
func NewOrderRepository(pool *pgxpool.Pool, products product.Repository, customers customer.Repository, coupons coupon.Repository) *OrderRepository {
	return &OrderRepository{pool: pool, products: products, customers: customers, coupons: coupons}
}

// Create persists a new order and any payments it already carries.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	lines, address, quote, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var couponCode *string
	if o.Coupon != nil {
		couponCode = &o.Coupon.Code
	}
	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Customer.ID, lines, address, quote, couponCode,
		o.Subtotal, o.Discount, o.ShippingCost, o.Total, o.TotalPaid,
		string(o.Status), o.TrackingCode, o.CancelReason,
		o.CreatedAt, o.PaidAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := savePayments(ctx, tx, o); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns the order with its customer, products and payments hydrated.
// Returns order.ErrNotFound when it does not exist.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, r.scanOrder(ctx))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// Update rewrites the order's mutable fields and upserts its payments.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, updateOrderSQL,
		o.ID,
		o.Subtotal, o.Discount, o.ShippingCost, o.Total, o.TotalPaid,
		string(o.Status), o.TrackingCode, o.CancelReason,
		o.PaidAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	if err := savePayments(ctx, tx, o); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// List returns orders created inside the filter window, oldest first.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, f.CreatedFrom, f.CreatedTo)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, r.scanOrder(ctx))
}

func (r *OrderRepository) scanOrder(ctx context.Context) func(pgx.CollectableRow) (*order.Order, error) {
	return func(row pgx.CollectableRow) (*order.Order, error) {
		var (
			o           order.Order
			custID      string
			linesJSON   []byte
			addressJSON []byte
			quoteJSON   []byte
			couponCode  *string
			status      string
		)
		err := row.Scan(
			&o.ID, &custID, &linesJSON, &addressJSON, &quoteJSON, &couponCode,
			&o.Subtotal, &o.Discount, &o.ShippingCost, &o.Total, &o.TotalPaid,
			&status, &o.TrackingCode, &o.CancelReason,
			&o.CreatedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		)
		if err != nil {
			return nil, err
		}
		o.Status = order.Status(status)

		if o.Customer, err = r.customers.GetByID(ctx, custID); err != nil {
			return nil, fmt.Errorf("hydrating order customer %q: %w", custID, err)
		}
		if err := unmarshalOrderDocs(&o, linesJSON, addressJSON, quoteJSON); err != nil {
			return nil, err
		}
		if err := r.hydrateProducts(ctx, &o); err != nil {
			return nil, err
		}
		if o.Payments, err = r.payments(ctx, &o); err != nil {
			return nil, err
		}
		if couponCode != nil {
			o.Coupon, err = r.coupons.FindByCode(ctx, *couponCode)
			if err != nil && !errors.Is(err, coupon.ErrNotFound) {
				return nil, fmt.Errorf("hydrating order coupon %q: %w", *couponCode, err)
			}
			// A coupon deactivated after checkout leaves the order's frozen
			// discount in place with no live coupon attached.
		}
		return &o, nil
	}
}

func (r *OrderRepository) hydrateProducts(ctx context.Context, o *order.Order) error {
	skus := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		skus = append(skus, l.SKU)
	}
	products, err := r.products.GetBySKUs(ctx, skus)
	if err != nil {
		return fmt.Errorf("hydrating order products: %w", err)
	}
	bySKU := make(map[string]*product.Product, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}
	for i := range o.Lines {
		o.Lines[i].Product = bySKU[o.Lines[i].SKU]
	}
	return nil
}

func (r *OrderRepository) payments(ctx context.Context, o *order.Order) ([]*order.Payment, error) {
	rows, err := r.pool.Query(ctx, getPaymentsSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("getting payments of %q: %w", o.ID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*order.Payment, error) {
		p := order.Payment{OrderID: o.ID}
		var paidAt *time.Time
		err := row.Scan(&p.ID, &p.Method, &p.Amount, &paidAt, &p.Confirmed, &p.Refunded)
		p.PaidAt = paidAt
		return &p, err
	})
}

func savePayments(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	for _, p := range o.Payments {
		_, err := tx.Exec(ctx, upsertPaymentSQL,
			p.ID, o.ID, p.Method, p.Amount, p.PaidAt, p.Confirmed, p.Refunded,
		)
		if err != nil {
			return fmt.Errorf("saving payment %q: %w", p.ID, err)
		}
	}
	return nil
}

func marshalOrderDocs(o *order.Order) (lines, address, quote []byte, err error) {
	docs := make([]orderLineDoc, 0, len(o.Lines))
	for _, l := range o.Lines {
		docs = append(docs, orderLineDoc{
			SKU:       l.SKU,
			Name:      l.Name,
			Category:  l.Category,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	if lines, err = json.Marshal(docs); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling order lines: %w", err)
	}

	a := o.DeliveryAddress
	address, err = json.Marshal(addressDoc{
		ID:         a.ID,
		PostalCode: a.PostalCode,
		City:       a.City,
		Region:     a.Region,
		Street:     a.Street,
		Number:     a.Number,
		Complement: a.Complement,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling delivery address: %w", err)
	}

	if o.Shipping != nil {
		quote, err = json.Marshal(shippingDoc{
			Origin:       o.Shipping.Origin,
			Destination:  o.Shipping.Destination,
			Cost:         o.Shipping.Cost,
			LeadTimeDays: o.Shipping.LeadTimeDays,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshaling shipping quote: %w", err)
		}
	}
	return lines, address, quote, nil
}

func unmarshalOrderDocs(o *order.Order, linesJSON, addressJSON, quoteJSON []byte) error {
	var docs []orderLineDoc
	if err := json.Unmarshal(linesJSON, &docs); err != nil {
		return fmt.Errorf("unmarshaling order lines: %w", err)
	}
	o.Lines = make([]order.Line, 0, len(docs))
	for _, d := range docs {
		o.Lines = append(o.Lines, order.Line{
			SKU:       d.SKU,
			Name:      d.Name,
			Category:  d.Category,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
		})
	}

	var a addressDoc
	if err := json.Unmarshal(addressJSON, &a); err != nil {
		return fmt.Errorf("unmarshaling delivery address: %w", err)
	}
	o.DeliveryAddress = customer.Address{
		ID:         a.ID,
		PostalCode: a.PostalCode,
		City:       a.City,
		Region:     a.Region,
		Street:     a.Street,
		Number:     a.Number,
		Complement: a.Complement,
	}

	if len(quoteJSON) > 0 {
		var q shippingDoc
		if err := json.Unmarshal(quoteJSON, &q); err != nil {
			return fmt.Errorf("unmarshaling shipping quote: %w", err)
		}
		o.Shipping = &shipping.Quote{
			Origin:       q.Origin,
			Destination:  q.Destination,
			Cost:         q.Cost,
			LeadTimeDays: q.LeadTimeDays,
		}
	}
	return nil
}
