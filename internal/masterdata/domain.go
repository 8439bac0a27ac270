// Package masterdata manages the reference records the billing desk reads:
// customers, items and suppliers.
package masterdata

import (
	"fmt"
	"time"

	"github.com/nvds/salesdesk/internal/platform/httpx"
)

var (
	ErrNotFound      = fmt.Errorf("record: %w", httpx.ErrNotFound)
	ErrAlreadyExists = fmt.Errorf("record: %w", httpx.ErrDuplicate)
)

// Customer is a buyer known to the desk.
type Customer struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" validate:"required,max=16"`
	Name      string    `json:"name" validate:"required,max=128"`
	Contact   string    `json:"contact,omitempty" validate:"max=64"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a sellable produce item. PackDue is the per-pack charge added to
// a line's total; PackCost is the desk's own cost for the packaging.
type Item struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" validate:"required,max=16"`
	Name      string    `json:"name" validate:"required,max=128"`
	PackDue   float64   `json:"pack_due" validate:"gte=0"`
	PackCost  float64   `json:"pack_cost" validate:"gte=0"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Supplier is the consignor a sale line is attributed to.
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" validate:"required,max=16"`
	Name      string    `json:"name" validate:"required,max=128"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
