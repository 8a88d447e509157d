package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lojinha-dev/lojinha/internal/domain/product"
)

const (
	listProductsSQL = `SELECT sku, name, category, price, stock, active, variant
		FROM products ORDER BY sku`

	getProductBySKUSQL = `SELECT sku, name, category, price, stock, active, variant
		FROM products WHERE sku = $1`

	getProductsBySKUsSQL = `SELECT sku, name, category, price, stock, active, variant
		FROM products WHERE sku = ANY($1)`

	upsertProductSQL = `INSERT INTO products (sku, name, category, price, stock, active, variant, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (sku) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			active = EXCLUDED.active,
			variant = EXCLUDED.variant,
			updated_at = now()`
)

// variantDoc is the JSONB shape of a product variant.
type variantDoc struct {
	Kind     product.VariantKind `json:"kind"`
	Digital  *product.Digital    `json:"digital,omitempty"`
	Physical *product.Physical   `json:"physical,omitempty"`
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the whole catalog ordered by SKU.
func (r *ProductRepository) List(ctx context.Context) ([]*product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetBySKU returns a single product by its SKU.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductBySKUSQL, sku)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", sku, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", sku, err)
	}
	return p, nil
}

// GetBySKUs returns products matching any of the given SKUs.
func (r *ProductRepository) GetBySKUs(ctx context.Context, skus []string) ([]*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsBySKUsSQL, skus)
	if err != nil {
		return nil, fmt.Errorf("getting products by skus: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Save upserts the product, including its current stock level.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product) error {
	variant, err := json.Marshal(variantDoc{
		Kind:     p.Variant.Kind,
		Digital:  p.Variant.Digital,
		Physical: p.Variant.Physical,
	})
	if err != nil {
		return fmt.Errorf("marshaling variant: %w", err)
	}

	_, err = r.pool.Exec(ctx, upsertProductSQL,
		p.SKU, p.Name, p.Category, p.Price, p.Stock, p.Active, variant,
	)
	if err != nil {
		return fmt.Errorf("saving product %q: %w", p.SKU, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (*product.Product, error) {
	var (
		p       product.Product
		variant []byte
	)
	err := row.Scan(&p.SKU, &p.Name, &p.Category, &p.Price, &p.Stock, &p.Active, &variant)
	if err != nil {
		return nil, err
	}

	var doc variantDoc
	if len(variant) > 0 {
		if err := json.Unmarshal(variant, &doc); err != nil {
			return nil, fmt.Errorf("unmarshaling variant of %q: %w", p.SKU, err)
		}
	}
	if doc.Kind == "" {
		doc.Kind = product.KindGeneric
	}
	p.Variant = product.Variant{Kind: doc.Kind, Digital: doc.Digital, Physical: doc.Physical}
	return &p, nil
}
