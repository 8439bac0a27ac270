package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvds/salesdesk/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the billing desk.
// The snapshot scope is the current trading day: drafts, held lines and the
// bills printed today all remain addressable from the workstation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const lineColumns = `id, customer_code, customer_name, supplier_code, item_code, item_name,
	weight, price_per_kg, pack_due, packs, total, given_amount, status, bill_no, created_at`

// Snapshot loads the working set plus the reference lists.
func (r *Repository) Snapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+`
		FROM sales_lines
		WHERE sale_date = CURRENT_DATE
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load sales lines: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sales line: %w", err)
		}
		switch line.Status {
		case StatusPrinted:
			snap.Printed = append(snap.Printed, line)
		case StatusHeld:
			snap.Held = append(snap.Held, line)
		default:
			snap.Drafts = append(snap.Drafts, line)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load sales lines: %w", err)
	}

	if snap.Customers, err = r.listCustomers(ctx); err != nil {
		return nil, err
	}
	if snap.Items, err = r.listItems(ctx); err != nil {
		return nil, err
	}
	if snap.Suppliers, err = r.listSuppliers(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

// CreateLine inserts a draft (or held/printed, when the payload carries a
// status) sales line and returns the stored row.
func (r *Repository) CreateLine(ctx context.Context, payload LinePayload) (*SaleLine, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO sales_lines
		(customer_code, customer_name, supplier_code, item_code, item_name,
		 weight, price_per_kg, pack_due, packs, total, given_amount, status, bill_no)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+lineColumns,
		payload.CustomerCode, payload.CustomerName, payload.SupplierCode,
		payload.ItemCode, payload.ItemName,
		payload.Weight, payload.PricePerKg, payload.PackDue, payload.Packs,
		payload.Total, payload.GivenAmount, string(payload.Status), payload.BillNo)
	line, err := scanLine(row)
	if err != nil {
		return nil, fmt.Errorf("insert sales line: %w", err)
	}
	return line, nil
}

// UpdateLine replaces the mutable columns of an existing line; status and
// bill number are deliberately untouched so an edit can never move a line
// between lifecycle states.
func (r *Repository) UpdateLine(ctx context.Context, id int64, payload LinePayload) (*SaleLine, error) {
	row := r.pool.QueryRow(ctx, `UPDATE sales_lines SET
		customer_code = $2, customer_name = $3, supplier_code = $4,
		item_code = $5, item_name = $6,
		weight = $7, price_per_kg = $8, pack_due = $9, packs = $10, total = $11,
		given_amount = COALESCE($12, given_amount),
		updated_at = NOW()
		WHERE id = $1
		RETURNING `+lineColumns,
		id,
		payload.CustomerCode, payload.CustomerName, payload.SupplierCode,
		payload.ItemCode, payload.ItemName,
		payload.Weight, payload.PricePerKg, payload.PackDue, payload.Packs,
		payload.Total, payload.GivenAmount)
	line, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update sales line %d: %w", id, err)
	}
	return line, nil
}

// DeleteLine removes a line.
func (r *Repository) DeleteLine(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sales_lines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sales line %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGivenAmount writes the tendered amount onto one line.
func (r *Repository) SetGivenAmount(ctx context.Context, id int64, amount float64) (*SaleLine, error) {
	row := r.pool.QueryRow(ctx, `UPDATE sales_lines
		SET given_amount = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+lineColumns, id, amount)
	line, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("set given amount on line %d: %w", id, err)
	}
	return line, nil
}

// MarkPrinted assigns a bill number to the cohort and flips every line to
// printed inside one transaction. With forceNewBill the number always comes
// from the sequence; otherwise the day's highest number is reused when one
// exists.
func (r *Repository) MarkPrinted(ctx context.Context, ids []int64, forceNewBill bool) (string, error) {
	if len(ids) == 0 {
		return "", errors.New("mark printed: empty cohort")
	}
	var billNo string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if !forceNewBill {
			var current *string
			err := tx.QueryRow(ctx, `SELECT MAX(bill_no) FROM sales_lines
				WHERE sale_date = CURRENT_DATE AND status = 'PRINTED'`).Scan(&current)
			if err != nil {
				return fmt.Errorf("current bill: %w", err)
			}
			if current != nil {
				billNo = *current
			}
		}
		if billNo == "" {
			var seq int64
			if err := tx.QueryRow(ctx, `SELECT nextval('bill_number_seq')`).Scan(&seq); err != nil {
				return fmt.Errorf("next bill number: %w", err)
			}
			billNo = strconv.FormatInt(seq, 10)
		}

		tag, err := tx.Exec(ctx, `UPDATE sales_lines
			SET status = 'PRINTED', bill_no = $1, updated_at = NOW()
			WHERE id = ANY($2)`, billNo, ids)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != len(ids) {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("mark printed: %w", err)
	}
	return billNo, nil
}

// MarkAllHeld parks the given lines. Printed lines are skipped rather than
// demoted.
func (r *Repository) MarkAllHeld(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE sales_lines
		SET status = 'HELD', updated_at = NOW()
		WHERE id = ANY($1) AND status <> 'PRINTED'`, ids)
	if err != nil {
		return fmt.Errorf("mark all held: %w", err)
	}
	return nil
}

// LoanBalance sums the customer's outstanding loan entries.
func (r *Repository) LoanBalance(ctx context.Context, customerCode string) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
		FROM customer_loans WHERE customer_code = $1`, customerCode).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("loan balance for %s: %w", customerCode, err)
	}
	return balance, nil
}

func (r *Repository) listCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name, COALESCE(contact, '')
		FROM customers WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.Code, &c.Name, &c.Contact); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) listItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name, pack_due, pack_cost
		FROM items WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Code, &it.Name, &it.PackDue, &it.PackCost); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) listSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name FROM suppliers WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("load suppliers: %w", err)
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.Code, &s.Name); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanLine(row pgx.Row) (*SaleLine, error) {
	var (
		l      SaleLine
		status string
	)
	err := row.Scan(&l.ID, &l.CustomerCode, &l.CustomerName, &l.SupplierCode,
		&l.ItemCode, &l.ItemName,
		&l.Weight, &l.PricePerKg, &l.PackDue, &l.Packs, &l.Total,
		&l.GivenAmount, &status, &l.BillNo, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = BillStatus(status)
	return &l, nil
}
