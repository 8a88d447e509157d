package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lojinha-dev/lojinha/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, type, value, expires_at, max_uses, uses, eligible_categories
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	upsertCouponSQL = `INSERT INTO coupons (code, type, value, expires_at, max_uses, uses, eligible_categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			max_uses = EXCLUDED.max_uses,
			uses = EXCLUDED.uses,
			eligible_categories = EXCLUDED.eligible_categories`

	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1
		WHERE code = $1 AND uses < max_uses`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return c, nil
}

// Save upserts the coupon.
func (r *CouponRepository) Save(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.Code, string(c.Type), c.Value, c.ExpiresAt, c.MaxUses, c.Uses, c.EligibleCategories,
	)
	if err != nil {
		return fmt.Errorf("saving coupon %q: %w", c.Code, err)
	}
	return nil
}

// IncrementUses atomically bumps the usage counter, never past max_uses.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitExceeded
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.Code, &c.Type, &c.Value, &c.ExpiresAt, &c.MaxUses, &c.Uses, &c.EligibleCategories,
	)
	return &c, err
}
