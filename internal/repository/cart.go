package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/cart"
	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
)

const (
	getActiveCartSQL = `SELECT id, customer_id, active, lines, created_at, updated_at
		FROM carts WHERE customer_id = $1 AND active = TRUE`

	upsertCartSQL = `INSERT INTO carts (id, customer_id, active, lines, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			lines = EXCLUDED.lines,
			updated_at = now()`
)

// cartLineDoc is the JSONB shape of one cart line. Products are referenced by
// SKU and rehydrated on load.
type cartLineDoc struct {
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Lines live
// in a JSONB column; a partial unique index keeps at most one active cart per
// customer.
type CartRepository struct {
	pool      *pgxpool.Pool
	products  product.Repository
	customers customer.Repository
}

// NewCartRepository returns a CartRepository that uses the given pool and
// hydrates carts through the product and customer repositories.
func NewCartRepository(pool *pgxpool.Pool, products product.Repository, customers customer.Repository) *CartRepository {
	return &CartRepository{pool: pool, products: products, customers: customers}
}

// GetActiveByCustomer returns the customer's active cart with its customer
// and products hydrated. Returns cart.ErrNotFound when none exists.
func (r *CartRepository) GetActiveByCustomer(ctx context.Context, customerID string) (*cart.Cart, error) {
	var (
		c         cart.Cart
		custID    string
		linesJSON []byte
	)
	err := r.pool.QueryRow(ctx, getActiveCartSQL, customerID).Scan(
		&c.ID, &custID, &c.Active, &linesJSON, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting active cart of %q: %w", customerID, err)
	}

	if c.Customer, err = r.customers.GetByID(ctx, custID); err != nil {
		return nil, fmt.Errorf("hydrating cart customer %q: %w", custID, err)
	}

	var docs []cartLineDoc
	if err := json.Unmarshal(linesJSON, &docs); err != nil {
		return nil, fmt.Errorf("unmarshaling cart lines: %w", err)
	}
	if c.Lines, err = r.hydrateLines(ctx, docs); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save upserts the cart, serializing its lines to JSONB.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	docs := make([]cartLineDoc, 0, len(c.Lines))
	for _, l := range c.Lines {
		docs = append(docs, cartLineDoc{
			SKU:       l.Product.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	linesJSON, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshaling cart lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, upsertCartSQL, c.ID, c.Customer.ID, c.Active, linesJSON)
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", c.ID, err)
	}
	return nil
}

func (r *CartRepository) hydrateLines(ctx context.Context, docs []cartLineDoc) ([]cart.Line, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	skus := make([]string, 0, len(docs))
	for _, d := range docs {
		skus = append(skus, d.SKU)
	}
	products, err := r.products.GetBySKUs(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("hydrating cart products: %w", err)
	}
	bySKU := make(map[string]*product.Product, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}

	lines := make([]cart.Line, 0, len(docs))
	for _, d := range docs {
		p, ok := bySKU[d.SKU]
		if !ok {
			// Product removed from the catalog; drop the stale line.
			continue
		}
		lines = append(lines, cart.Line{
			Product:   p,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
		})
	}
	return lines, nil
}
