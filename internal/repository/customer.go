package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lojinha-dev/lojinha/internal/domain/customer"
)

const (
	getCustomerByIDSQL = `SELECT id, name, email, tax_id FROM customers WHERE id = $1`

	findMatchingCustomersSQL = `SELECT id, name, email, tax_id FROM customers
		WHERE (tax_id = $1 OR email = $2) AND id <> $3`

	upsertCustomerSQL = `INSERT INTO customers (id, name, email, tax_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			tax_id = EXCLUDED.tax_id`

	getAddressesSQL = `SELECT id, postal_code, city, region, street, number, complement
		FROM addresses WHERE customer_id = $1 ORDER BY position`

	deleteAddressesSQL = `DELETE FROM addresses WHERE customer_id = $1`

	insertAddressSQL = `INSERT INTO addresses
		(id, customer_id, position, postal_code, city, region, street, number, complement)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
// Addresses are stored in their own table, ordered by position so the first
// registered address stays the default delivery address.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByID returns the customer with addresses hydrated in insertion order.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	if c.Addresses, err = r.addresses(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Save upserts the customer and rewrites its address list in one transaction.
func (r *CustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, upsertCustomerSQL, c.ID, c.Name, c.Email, c.TaxID); err != nil {
		return fmt.Errorf("saving customer %q: %w", c.ID, err)
	}
	if _, err := tx.Exec(ctx, deleteAddressesSQL, c.ID); err != nil {
		return fmt.Errorf("clearing addresses of %q: %w", c.ID, err)
	}
	for i, a := range c.Addresses {
		_, err := tx.Exec(ctx, insertAddressSQL,
			a.ID, c.ID, i, a.PostalCode, a.City, a.Region, a.Street, a.Number, a.Complement,
		)
		if err != nil {
			return fmt.Errorf("saving address %q: %w", a.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing customer %q: %w", c.ID, err)
	}
	return nil
}

// FindMatching returns stored customers sharing c's tax id or email,
// excluding c itself.
func (r *CustomerRepository) FindMatching(ctx context.Context, c *customer.Customer) ([]*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, findMatchingCustomersSQL, c.TaxID, c.Email, c.ID)
	if err != nil {
		return nil, fmt.Errorf("finding matching customers: %w", err)
	}
	return pgx.CollectRows(rows, scanCustomer)
}

func (r *CustomerRepository) addresses(ctx context.Context, customerID string) ([]customer.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting addresses of %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (customer.Address, error) {
		var a customer.Address
		err := row.Scan(&a.ID, &a.PostalCode, &a.City, &a.Region, &a.Street, &a.Number, &a.Complement)
		return a, err
	})
}

func scanCustomer(row pgx.CollectableRow) (*customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.TaxID)
	return &c, err
}
