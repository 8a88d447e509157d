package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// VariantKind discriminates the product variant payload.
type VariantKind string

const (
	KindGeneric  VariantKind = "GENERIC"
	KindDigital  VariantKind = "DIGITAL"
	KindPhysical VariantKind = "PHYSICAL"
)

// Digital holds delivery data for downloadable products.
type Digital struct {
	DownloadURL string
	LicenseKey  string
}

// Physical holds the shipping-relevant measurements of a physical product.
// Dimensions are in centimeters, weight in kilograms.
type Physical struct {
	Weight float64
	Height float64
	Width  float64
	Depth  float64
}

// Cubage returns the volume used by shipping cubage calculations.
func (p Physical) Cubage() float64 {
	return p.Height * p.Width * p.Depth
}

// Variant is a tagged union: the pointer matching Kind is set, the rest are nil.
type Variant struct {
	Kind     VariantKind
	Digital  *Digital
	Physical *Physical
}

// Product is a catalog item available for purchase. Stock is mutated only
// through AdjustStock, which rejects negative results.
type Product struct {
	SKU      string
	Name     string
	Category string
	Price    decimal.Decimal
	Stock    int
	Active   bool
	Variant  Variant
}

// New validates and creates a generic product.
func New(sku, name, category string, price decimal.Decimal, stock int) (*Product, error) {
	p := &Product{
		SKU:      strings.TrimSpace(sku),
		Name:     strings.TrimSpace(name),
		Category: strings.TrimSpace(category),
		Price:    price,
		Stock:    stock,
		Active:   true,
		Variant:  Variant{Kind: KindGeneric},
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewDigital creates a product with a digital variant.
func NewDigital(sku, name, category string, price decimal.Decimal, stock int, d Digital) (*Product, error) {
	p, err := New(sku, name, category, price, stock)
	if err != nil {
		return nil, err
	}
	if d.DownloadURL == "" {
		return nil, errors.New("download URL must not be empty")
	}
	p.Variant = Variant{Kind: KindDigital, Digital: &d}
	return p, nil
}

// NewPhysical creates a product with a physical variant.
func NewPhysical(sku, name, category string, price decimal.Decimal, stock int, ph Physical) (*Product, error) {
	p, err := New(sku, name, category, price, stock)
	if err != nil {
		return nil, err
	}
	if ph.Weight <= 0 || ph.Height <= 0 || ph.Width <= 0 || ph.Depth <= 0 {
		return nil, errors.New("physical dimensions must be greater than zero")
	}
	p.Variant = Variant{Kind: KindPhysical, Physical: &ph}
	return p, nil
}

func (p *Product) validate() error {
	if p.SKU == "" {
		return errors.New("sku must not be empty")
	}
	if p.Name == "" {
		return errors.New("name must not be empty")
	}
	if p.Category == "" {
		return errors.New("category must not be empty")
	}
	if !p.Price.IsPositive() {
		return errors.Errorf("price must be greater than zero, got %s", p.Price)
	}
	if p.Stock < 0 {
		return errors.Errorf("stock must not be negative, got %d", p.Stock)
	}
	return nil
}

// AdjustStock applies a signed delta to the stock level. It is the only way
// to mutate stock and fails when the result would be negative.
func (p *Product) AdjustStock(delta int) error {
	next := p.Stock + delta
	if next < 0 {
		return errors.Errorf("product %s: stock adjustment %+d would result in %d", p.SKU, delta, next)
	}
	p.Stock = next
	return nil
}

// Activate marks the product as sellable.
func (p *Product) Activate() { p.Active = true }

// Deactivate removes the product from sale without deleting it.
func (p *Product) Deactivate() { p.Active = false }

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	GetBySKUs(ctx context.Context, skus []string) ([]*Product, error)
	Save(ctx context.Context, p *Product) error
}
