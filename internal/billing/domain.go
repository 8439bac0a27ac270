package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BillStatus tracks where a sale line sits in the billing lifecycle.
type BillStatus string

const (
	// StatusDraft marks a freshly committed line that has not been held or printed.
	StatusDraft BillStatus = ""
	// StatusHeld marks a line the operator parked for later printing.
	StatusHeld BillStatus = "HELD"
	// StatusPrinted marks a line that belongs to a printed bill.
	StatusPrinted BillStatus = "PRINTED"
)

// SaleLine is one itemised entry on a customer's bill.
type SaleLine struct {
	ID           int64      `json:"id"`
	CustomerCode string     `json:"customer_code"`
	CustomerName string     `json:"customer_name,omitempty"`
	SupplierCode string     `json:"supplier_code,omitempty"`
	ItemCode     string     `json:"item_code,omitempty"`
	ItemName     string     `json:"item_name"`
	Weight       float64    `json:"weight"`
	PricePerKg   float64    `json:"price_per_kg"`
	PackDue      float64    `json:"pack_due"`
	Packs        int        `json:"packs"`
	Total        float64    `json:"total"`
	GivenAmount  *float64   `json:"given_amount,omitempty"`
	Status       BillStatus `json:"bill_printed"`
	BillNo       *string    `json:"bill_no,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Printed reports whether the line belongs to a closed bill.
func (l *SaleLine) Printed() bool { return l.Status == StatusPrinted }

// Validate checks the bill-number invariant: a bill number exists exactly
// when the line is printed.
func (l *SaleLine) Validate() error {
	hasBill := l.BillNo != nil && *l.BillNo != ""
	if l.Printed() != hasBill {
		return fmt.Errorf("line %d: bill_no must be set iff printed", l.ID)
	}
	return nil
}

// LinePayload is what the engine sends to the persistence collaborator when
// creating or updating a line.
type LinePayload struct {
	CustomerCode string     `json:"customer_code"`
	CustomerName string     `json:"customer_name,omitempty"`
	SupplierCode string     `json:"supplier_code,omitempty"`
	ItemCode     string     `json:"item_code,omitempty"`
	ItemName     string     `json:"item_name"`
	Weight       float64    `json:"weight"`
	PricePerKg   float64    `json:"price_per_kg"`
	PackDue      float64    `json:"pack_due"`
	Packs        int        `json:"packs"`
	Total        float64    `json:"total"`
	GivenAmount  *float64   `json:"given_amount,omitempty"`
	Status       BillStatus `json:"bill_printed,omitempty"`
	BillNo       *string    `json:"bill_no,omitempty"`
}

// Customer is a reference-list entry for the workstation's customer selector.
type Customer struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

// Item is a reference-list entry; PackDue is copied onto the line at
// selection time, PackCost is informational only.
type Item struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	PackDue  float64 `json:"pack_due"`
	PackCost float64 `json:"pack_cost"`
}

// Supplier is a reference-list entry for the supplier code field.
type Supplier struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Snapshot is the bootstrap state the engine consumes exactly once at
// startup (or on an explicit resynchronize). The three line collections
// are disjoint by status.
type Snapshot struct {
	Drafts    []*SaleLine `json:"drafts"`
	Held      []*SaleLine `json:"held"`
	Printed   []*SaleLine `json:"printed"`
	Customers []Customer  `json:"customers"`
	Items     []Item      `json:"items"`
	Suppliers []Supplier  `json:"suppliers"`
}

// Store is the persistence collaborator the engine depends on. All writes
// happen server-side; the engine mirrors successful results into its ledger.
type Store interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	CreateLine(ctx context.Context, payload LinePayload) (*SaleLine, error)
	UpdateLine(ctx context.Context, id int64, payload LinePayload) (*SaleLine, error)
	DeleteLine(ctx context.Context, id int64) error
	SetGivenAmount(ctx context.Context, id int64, amount float64) (*SaleLine, error)
	MarkPrinted(ctx context.Context, ids []int64, forceNewBill bool) (string, error)
	MarkAllHeld(ctx context.Context, ids []int64) error
	LoanBalance(ctx context.Context, customerCode string) (float64, error)
}

// Renderer produces the physical receipt. Render must complete before the
// engine commits the printed transition; its result carries no data back.
type Renderer interface {
	Render(ctx context.Context, doc *ReceiptDocument) error
}

// ErrNotFound indicates a ledger id that does not exist.
var ErrNotFound = errors.New("sale line not found")

// ValidationError is resolved locally and never reaches the persistence
// collaborator. Field names the entry field at fault when known.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a failure reported by the persistence collaborator.
type PersistenceError struct {
	Op      string
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PrintError indicates the print flow failed after validation; the engine
// forces a resynchronize because partial server-side state may exist.
type PrintError struct {
	Stage string
	Err   error
}

func (e *PrintError) Error() string { return fmt.Sprintf("print %s: %v", e.Stage, e.Err) }

func (e *PrintError) Unwrap() error { return e.Err }
