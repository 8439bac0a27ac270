package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for reference data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ListCustomers returns active customers, optionally filtered by a code or
// name prefix.
func (r *Repository) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, COALESCE(contact, ''), is_active, created_at
		FROM customers
		WHERE is_active AND (code ILIKE $1 OR name ILIKE $1)
		ORDER BY code`, prefixPattern(search))
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Contact, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCustomer inserts a customer.
func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (code, name, contact, is_active)
		VALUES ($1, $2, NULLIF($3, ''), TRUE)
		RETURNING id, created_at`,
		c.Code, c.Name, c.Contact).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return Customer{}, ErrAlreadyExists
		}
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	c.IsActive = true
	return c, nil
}

// GetCustomer looks a customer up by code.
func (r *Repository) GetCustomer(ctx context.Context, code string) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(contact, ''), is_active, created_at
		FROM customers WHERE code = $1`, code).
		Scan(&c.ID, &c.Code, &c.Name, &c.Contact, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("get customer %s: %w", code, err)
	}
	return c, nil
}

// ListItems returns active items ordered by name.
func (r *Repository) ListItems(ctx context.Context, search string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, pack_due, pack_cost, is_active, created_at
		FROM items
		WHERE is_active AND (code ILIKE $1 OR name ILIKE $1)
		ORDER BY name`, prefixPattern(search))
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.PackDue, &it.PackCost, &it.IsActive, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CreateItem inserts an item.
func (r *Repository) CreateItem(ctx context.Context, it Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO items (code, name, pack_due, pack_cost, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at`,
		it.Code, it.Name, it.PackDue, it.PackCost).Scan(&it.ID, &it.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return Item{}, ErrAlreadyExists
		}
		return Item{}, fmt.Errorf("create item: %w", err)
	}
	it.IsActive = true
	return it, nil
}

// ListSuppliers returns active suppliers ordered by code.
func (r *Repository) ListSuppliers(ctx context.Context, search string) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, is_active, created_at
		FROM suppliers
		WHERE is_active AND (code ILIKE $1 OR name ILIKE $1)
		ORDER BY code`, prefixPattern(search))
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateSupplier inserts a supplier.
func (r *Repository) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (code, name, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id, created_at`,
		s.Code, s.Name).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return Supplier{}, ErrAlreadyExists
		}
		return Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	s.IsActive = true
	return s, nil
}

// likeEscaper neutralises LIKE wildcards in operator-typed search input.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func prefixPattern(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return "%"
	}
	return likeEscaper.Replace(search) + "%"
}
