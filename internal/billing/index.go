package billing

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// PrintedGroup is one selectable entry in the printed customer list: a
// (customer, bill) cohort with its exact total.
type PrintedGroup struct {
	CustomerCode string  `json:"customer_code"`
	BillNo       string  `json:"bill_no"`
	Total        float64 `json:"total"`
}

// HeldGroup is one selectable entry in the held customer list. Total covers
// every line of the customer, matching what the workstation shows beside
// the code.
type HeldGroup struct {
	CustomerCode string    `json:"customer_code"`
	Recency      time.Time `json:"recency"`
	latestID     int64
	Total        float64 `json:"total"`
}

// Index derives the customer selection lists from the ledger. Results are
// cached against the ledger version and invalidated on any mutation.
type Index struct {
	ledger *Ledger

	builtAt uint64
	printed []PrintedGroup
	held    []HeldGroup
}

// NewIndex binds a selection index to a ledger.
func NewIndex(ledger *Ledger) *Index {
	return &Index{ledger: ledger}
}

// Printed lists printed cohorts filtered by a case-insensitive prefix over
// customer code or bill number. Ordering is bill number descending; bill
// numbers that do not parse numerically sort as zero.
func (x *Index) Printed(query string) []PrintedGroup {
	x.build()
	if query == "" {
		return x.printed
	}
	q := strings.ToLower(query)
	var out []PrintedGroup
	for _, g := range x.printed {
		if strings.HasPrefix(strings.ToLower(g.CustomerCode), q) ||
			strings.HasPrefix(strings.ToLower(g.BillNo), q) {
			out = append(out, g)
		}
	}
	return out
}

// Held lists open-cohort customers filtered by a case-insensitive prefix
// over customer code, most recently active first.
func (x *Index) Held(query string) []HeldGroup {
	x.build()
	if query == "" {
		return x.held
	}
	q := strings.ToLower(query)
	var out []HeldGroup
	for _, g := range x.held {
		if strings.HasPrefix(strings.ToLower(g.CustomerCode), q) {
			out = append(out, g)
		}
	}
	return out
}

func (x *Index) build() {
	if x.builtAt == x.ledger.Version() && x.builtAt != 0 {
		return
	}
	x.printed = buildPrintedGroups(x.ledger.Printed())
	x.held = buildHeldGroups(x.ledger.Held(), x.ledger)
	x.builtAt = x.ledger.Version()
}

func buildPrintedGroups(lines []*SaleLine) []PrintedGroup {
	type key struct{ customer, bill string }
	totals := make(map[key]float64)
	var order []key
	for _, l := range lines {
		if l.BillNo == nil || *l.BillNo == "" {
			continue
		}
		k := key{l.CustomerCode, *l.BillNo}
		if _, seen := totals[k]; !seen {
			order = append(order, k)
		}
		totals[k] += LineTotal(l)
	}
	out := make([]PrintedGroup, 0, len(order))
	for _, k := range order {
		out = append(out, PrintedGroup{CustomerCode: k.customer, BillNo: k.bill, Total: totals[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return numericBill(out[i].BillNo) > numericBill(out[j].BillNo)
	})
	return out
}

func buildHeldGroups(held []*SaleLine, ledger *Ledger) []HeldGroup {
	byCustomer := make(map[string]*HeldGroup)
	var order []string
	for _, l := range held {
		g, ok := byCustomer[l.CustomerCode]
		if !ok {
			g = &HeldGroup{CustomerCode: l.CustomerCode}
			byCustomer[l.CustomerCode] = g
			order = append(order, l.CustomerCode)
		}
		if after(l, g) {
			g.Recency = l.CreatedAt
			g.latestID = l.ID
		}
	}
	out := make([]HeldGroup, 0, len(order))
	for _, code := range order {
		g := byCustomer[code]
		g.Total = CohortTotal(ledger.ByCustomer(code))
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Recency.Equal(out[j].Recency) {
			return out[i].Recency.After(out[j].Recency)
		}
		return out[i].latestID > out[j].latestID
	})
	return out
}

// after decides whether line l is more recent than the group's current
// latest entry. Creation time wins when present; the id is the tie-break
// and the fallback for lines without timestamps.
func after(l *SaleLine, g *HeldGroup) bool {
	if l.CreatedAt.IsZero() && g.Recency.IsZero() {
		return l.ID > g.latestID
	}
	if l.CreatedAt.Equal(g.Recency) {
		return l.ID > g.latestID
	}
	return l.CreatedAt.After(g.Recency)
}

func numericBill(billNo string) int {
	n, err := strconv.Atoi(strings.TrimSpace(billNo))
	if err != nil {
		return 0
	}
	return n
}
