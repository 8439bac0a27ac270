package billing

import (
	"sort"
	"strconv"
	"strings"
)

// ParseAmount converts textual field input to a number with the engine's
// fallback-to-zero policy. Parse failures are never surfaced as errors.
func ParseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseCount is ParseAmount for whole-number fields (packs).
func ParseCount(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

// LineTotal derives the display/settlement value of a single line: the
// persisted total when present, otherwise weight x price, otherwise zero.
// Persisted totals may be stale or overridden; they win regardless.
func LineTotal(l *SaleLine) float64 {
	if l == nil {
		return 0
	}
	if l.Total != 0 {
		return l.Total
	}
	if v := l.Weight * l.PricePerKg; v != 0 {
		return v
	}
	return 0
}

// CohortTotal sums LineTotal over a cohort. Order-independent.
func CohortTotal(lines []*SaleLine) float64 {
	var sum float64
	for _, l := range lines {
		sum += LineTotal(l)
	}
	return sum
}

// ItemTotals accumulates weight and packs for one item name.
type ItemTotals struct {
	ItemName    string  `json:"item_name"`
	TotalWeight float64 `json:"total_weight"`
	TotalPacks  int     `json:"total_packs"`
}

// ItemSummary groups lines by item name, accumulating weight and pack
// counts. Output is sorted by item name for stable rendering.
func ItemSummary(lines []*SaleLine) []ItemTotals {
	byName := make(map[string]*ItemTotals)
	for _, l := range lines {
		name := l.ItemName
		if name == "" {
			name = "Unknown"
		}
		t, ok := byName[name]
		if !ok {
			t = &ItemTotals{ItemName: name}
			byName[name] = t
		}
		t.TotalWeight += l.Weight
		t.TotalPacks += l.Packs
	}
	out := make([]ItemTotals, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out
}

// ComputeTotal is the entry-form auto total: weight x price plus the
// per-pack surcharge.
func ComputeTotal(weight, pricePerKg float64, packs int, packDue float64) float64 {
	return weight*pricePerKg + float64(packs)*packDue
}
