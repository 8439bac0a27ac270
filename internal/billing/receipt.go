package billing

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ReceiptRow is one printed line: item with pack count, weight, unit price
// and the weight value (weight x price, excluding pack dues).
type ReceiptRow struct {
	ItemName   string  `json:"item_name"`
	Packs      int     `json:"packs"`
	Weight     float64 `json:"weight"`
	PricePerKg float64 `json:"price_per_kg"`
	Amount     float64 `json:"amount"`
}

// SummaryChip is one item-summary entry (total weight / total packs).
type SummaryChip struct {
	ItemName string  `json:"item_name"`
	Weight   float64 `json:"weight"`
	Packs    int     `json:"packs"`
}

// SummaryPair packs two chips per printed row for compact rendering; Right
// is nil on an odd tail.
type SummaryPair struct {
	Left  SummaryChip  `json:"left"`
	Right *SummaryChip `json:"right,omitempty"`
}

// ReceiptDocument is the structured receipt handed to the renderer. It is
// fully derived from its inputs; the clock stamp is injected by the caller.
type ReceiptDocument struct {
	ID           string    `json:"id"`
	BillNo       string    `json:"bill_no"`
	CustomerName string    `json:"customer_name"`
	Contact      string    `json:"contact,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`

	Rows []ReceiptRow `json:"rows"`

	TotalPacks           int     `json:"total_packs"`
	TotalPrice           float64 `json:"total_price"`
	SalesExcludingPacks  float64 `json:"sales_excluding_pack_due"`
	PackDueCost          float64 `json:"pack_due_cost"`
	TransportCost        float64 `json:"transport_cost"`
	GivenAmount          float64 `json:"given_amount"`
	HasGivenAmount       bool    `json:"has_given_amount"`
	Remaining            float64 `json:"remaining"`
	LoanAmount           float64 `json:"loan_amount"`
	GrandTotalWithLoan   float64 `json:"grand_total_with_loan"`
	ShowGrandTotal       bool    `json:"show_grand_total"`

	Summary []SummaryPair `json:"summary"`
}

// BuildReceipt turns a cohort plus the customer's loan balance into a
// receipt document. It performs no I/O and is deterministic given its
// inputs and the supplied timestamp.
func BuildReceipt(lines []*SaleLine, billNo, customerName, contact string, loanAmount float64, issuedAt time.Time) *ReceiptDocument {
	doc := &ReceiptDocument{
		ID:           uuid.NewString(),
		BillNo:       billNo,
		CustomerName: customerName,
		Contact:      contact,
		IssuedAt:     issuedAt,
		LoanAmount:   loanAmount,
	}

	for _, l := range lines {
		doc.Rows = append(doc.Rows, ReceiptRow{
			ItemName:   l.ItemName,
			Packs:      l.Packs,
			Weight:     l.Weight,
			PricePerKg: l.PricePerKg,
			Amount:     l.Weight * l.PricePerKg,
		})
		doc.TotalPacks += l.Packs
		doc.TotalPrice += LineTotal(l)
		doc.SalesExcludingPacks += l.Weight * l.PricePerKg
	}
	doc.PackDueCost = doc.TotalPrice - doc.SalesExcludingPacks

	// One given amount per cohort: the first non-zero value wins, it is
	// never summed across lines.
	for _, l := range lines {
		if l.GivenAmount != nil && *l.GivenAmount > 0 {
			doc.GivenAmount = *l.GivenAmount
			doc.HasGivenAmount = true
			break
		}
	}
	if doc.HasGivenAmount {
		doc.Remaining = abs(doc.GivenAmount - doc.TotalPrice)
	}

	if loanAmount != 0 {
		doc.ShowGrandTotal = true
		doc.GrandTotalWithLoan = abs(abs(loanAmount) + doc.TotalPrice)
	}

	doc.Summary = pairSummary(ItemSummary(lines))
	return doc
}

func pairSummary(items []ItemTotals) []SummaryPair {
	var pairs []SummaryPair
	for i := 0; i < len(items); i += 2 {
		p := SummaryPair{Left: SummaryChip{
			ItemName: items[i].ItemName,
			Weight:   items[i].TotalWeight,
			Packs:    items[i].TotalPacks,
		}}
		if i+1 < len(items) {
			p.Right = &SummaryChip{
				ItemName: items[i+1].ItemName,
				Weight:   items[i+1].TotalWeight,
				Packs:    items[i+1].TotalPacks,
			}
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a monetary value with grouping separators and two
// decimals, e.g. 12,345.60.
func FormatAmount(v float64) string {
	return amountPrinter.Sprintf("%v", number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}
