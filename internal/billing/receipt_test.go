package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiptLines() []*SaleLine {
	given := 500.0
	return []*SaleLine{
		{ID: 1, ItemName: "Tomato", Weight: 10, PricePerKg: 20, Packs: 2, PackDue: 5, Total: 210, GivenAmount: &given},
		{ID: 2, ItemName: "Beans", Weight: 5, PricePerKg: 30, Packs: 1, PackDue: 5, Total: 155},
		{ID: 3, ItemName: "Tomato", Weight: 3, PricePerKg: 20, Packs: 1, PackDue: 5, Total: 65},
	}
}

func TestBuildReceiptTotals(t *testing.T) {
	issued := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	doc := BuildReceipt(receiptLines(), "42", "Ravi Traders", "077-1234567", 0, issued)

	assert.Equal(t, "42", doc.BillNo)
	assert.Equal(t, "Ravi Traders", doc.CustomerName)
	assert.Equal(t, issued, doc.IssuedAt)
	require.Len(t, doc.Rows, 3)

	assert.Equal(t, 4, doc.TotalPacks)
	assert.InDelta(t, 430.0, doc.TotalPrice, 1e-9)
	// weight x price only: 200 + 150 + 60.
	assert.InDelta(t, 410.0, doc.SalesExcludingPacks, 1e-9)
	assert.InDelta(t, 20.0, doc.PackDueCost, 1e-9)
	assert.NotEmpty(t, doc.ID)
}

func TestBuildReceiptGivenAmountFirstNonZeroWins(t *testing.T) {
	lines := receiptLines()
	second := 900.0
	lines[1].GivenAmount = &second

	doc := BuildReceipt(lines, "42", "X", "", 0, time.Now())
	require.True(t, doc.HasGivenAmount)
	assert.InDelta(t, 500.0, doc.GivenAmount, 1e-9)
	// Remaining is reported as a magnitude.
	assert.InDelta(t, 70.0, doc.Remaining, 1e-9)
}

func TestBuildReceiptOverpaymentRemainingIsAbsolute(t *testing.T) {
	given := 100.0
	lines := []*SaleLine{{ID: 1, ItemName: "Okra", Total: 480, GivenAmount: &given}}

	doc := BuildReceipt(lines, "9", "X", "", 0, time.Now())
	assert.InDelta(t, 380.0, doc.Remaining, 1e-9)
}

func TestBuildReceiptWithoutGivenAmount(t *testing.T) {
	lines := receiptLines()
	lines[0].GivenAmount = nil
	zero := 0.0
	lines[1].GivenAmount = &zero

	doc := BuildReceipt(lines, "42", "X", "", 0, time.Now())
	assert.False(t, doc.HasGivenAmount)
	assert.Zero(t, doc.Remaining)
}

func TestBuildReceiptLoanRow(t *testing.T) {
	doc := BuildReceipt(receiptLines(), "42", "X", "", 0, time.Now())
	assert.False(t, doc.ShowGrandTotal)

	doc = BuildReceipt(receiptLines(), "42", "X", "", 150, time.Now())
	require.True(t, doc.ShowGrandTotal)
	assert.InDelta(t, 580.0, doc.GrandTotalWithLoan, 1e-9)

	// Credit balances still render as a magnitude.
	doc = BuildReceipt(receiptLines(), "42", "X", "", -150, time.Now())
	require.True(t, doc.ShowGrandTotal)
	assert.InDelta(t, 580.0, doc.GrandTotalWithLoan, 1e-9)
}

func TestReceiptSummaryPairsTwoPerLine(t *testing.T) {
	doc := BuildReceipt(receiptLines(), "42", "X", "", 0, time.Now())
	// Two distinct items pair onto one row.
	require.Len(t, doc.Summary, 1)
	require.NotNil(t, doc.Summary[0].Right)

	lines := append(receiptLines(), &SaleLine{ID: 4, ItemName: "Okra", Weight: 1, Packs: 1, Total: 10})
	doc = BuildReceipt(lines, "42", "X", "", 0, time.Now())
	require.Len(t, doc.Summary, 2)
	// Odd tail leaves the right slot empty.
	assert.Nil(t, doc.Summary[1].Right)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1,234.50", FormatAmount(1234.5))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "12.34", FormatAmount(12.336))
}
