// Package printing renders receipt documents to the print spool.
package printing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/nvds/salesdesk/internal/billing"
)

// Receipt paper is 80mm thermal stock; the height grows with the row count
// so gofpdf never paginates a receipt.
const (
	paperWidth   = 80.0
	marginX      = 4.0
	usableWidth  = paperWidth - 2*marginX
	lineHeight   = 4.2
	headerHeight = 30.0
	footerHeight = 58.0
)

// SpoolRenderer writes each receipt as a PDF into the spool directory,
// where the print daemon picks it up. Rendering runs in its own goroutine
// so a stuck filesystem cannot outlive the caller's deadline.
type SpoolRenderer struct {
	dir    string
	logger *slog.Logger
}

// NewSpoolRenderer creates the spool directory if needed.
func NewSpoolRenderer(dir string, logger *slog.Logger) (*SpoolRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("printing: create spool dir: %w", err)
	}
	return &SpoolRenderer{dir: dir, logger: logger}, nil
}

var _ billing.Renderer = (*SpoolRenderer)(nil)

// Render produces the receipt PDF and commits it to the spool atomically
// via rename. The context deadline bounds the whole operation.
func (s *SpoolRenderer) Render(ctx context.Context, doc *billing.ReceiptDocument) error {
	done := make(chan error, 1)
	go func() {
		done <- s.render(doc)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("printing: receipt %s: %w", doc.ID, ctx.Err())
	}
}

func (s *SpoolRenderer) render(doc *billing.ReceiptDocument) error {
	height := headerHeight + float64(len(doc.Rows)+len(doc.Summary))*lineHeight + footerHeight

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: paperWidth, Ht: height},
	})
	pdf.SetMargins(marginX, 4, marginX)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Courier", "B", 12)
	pdf.CellFormat(usableWidth, 5, "NVDS", "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	pdf.CellFormat(usableWidth, 4, "Sales Receipt", "", 1, "C", false, 0, "")
	pdf.CellFormat(usableWidth, 4, doc.IssuedAt.Format("02-Jan-2006 03:04 PM"), "", 1, "C", false, 0, "")
	s.divider(pdf)

	pdf.SetFont("Courier", "B", 9)
	pdf.CellFormat(usableWidth/2, lineHeight, "Bill No: "+doc.BillNo, "", 0, "L", false, 0, "")
	pdf.CellFormat(usableWidth/2, lineHeight, doc.CustomerName, "", 1, "R", false, 0, "")
	if doc.Contact != "" {
		pdf.SetFont("Courier", "", 8)
		pdf.CellFormat(usableWidth, lineHeight, doc.Contact, "", 1, "R", false, 0, "")
	}
	s.divider(pdf)

	pdf.SetFont("Courier", "B", 8)
	pdf.CellFormat(26, lineHeight, "Item", "", 0, "L", false, 0, "")
	pdf.CellFormat(13, lineHeight, "Kg", "", 0, "R", false, 0, "")
	pdf.CellFormat(13, lineHeight, "Rate", "", 0, "R", false, 0, "")
	pdf.CellFormat(7, lineHeight, "Pk", "", 0, "R", false, 0, "")
	pdf.CellFormat(13, lineHeight, "Total", "", 1, "R", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	for _, row := range doc.Rows {
		name := row.ItemName
		if len(name) > 14 {
			name = name[:14]
		}
		pdf.CellFormat(26, lineHeight, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(13, lineHeight, billing.FormatAmount(row.Weight), "", 0, "R", false, 0, "")
		pdf.CellFormat(13, lineHeight, billing.FormatAmount(row.PricePerKg), "", 0, "R", false, 0, "")
		pdf.CellFormat(7, lineHeight, fmt.Sprintf("%d", row.Packs), "", 0, "R", false, 0, "")
		pdf.CellFormat(13, lineHeight, billing.FormatAmount(row.Amount), "", 1, "R", false, 0, "")
	}
	s.divider(pdf)

	for _, row := range footerRows(doc) {
		s.amountRow(pdf, row.Label, row.Amount, row.Strong)
	}

	if len(doc.Summary) > 0 {
		s.divider(pdf)
		pdf.SetFont("Courier", "", 7)
		for _, pair := range doc.Summary {
			left := summaryChip(pair.Left)
			right := ""
			if pair.Right != nil {
				right = summaryChip(*pair.Right)
			}
			pdf.CellFormat(usableWidth/2, lineHeight, left, "", 0, "L", false, 0, "")
			pdf.CellFormat(usableWidth/2, lineHeight, right, "", 1, "L", false, 0, "")
		}
	}

	s.divider(pdf)
	pdf.SetFont("Courier", "", 7)
	pdf.CellFormat(usableWidth, lineHeight, "Thank you", "", 1, "C", false, 0, "")

	tmp := filepath.Join(s.dir, doc.ID+".pdf.tmp")
	if err := pdf.OutputFileAndClose(tmp); err != nil {
		return fmt.Errorf("printing: write receipt %s: %w", doc.ID, err)
	}
	final := filepath.Join(s.dir, doc.ID+".pdf")
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("printing: commit receipt %s: %w", doc.ID, err)
	}
	if s.logger != nil {
		s.logger.Info("receipt spooled",
			slog.String("receipt_id", doc.ID),
			slog.String("bill_no", doc.BillNo),
			slog.String("path", final))
	}
	return nil
}

type amountLine struct {
	Label  string
	Amount float64
	Strong bool
}

// footerRows lists the amount rows under the item table, in print order.
// Transport always prints, even at zero, matching the ticket layout.
func footerRows(doc *billing.ReceiptDocument) []amountLine {
	rows := []amountLine{
		{Label: "Sales", Amount: doc.SalesExcludingPacks},
		{Label: fmt.Sprintf("Packs (%d)", doc.TotalPacks), Amount: doc.PackDueCost},
		{Label: "Transport", Amount: doc.TransportCost},
		{Label: "TOTAL", Amount: doc.TotalPrice, Strong: true},
	}
	if doc.HasGivenAmount {
		rows = append(rows,
			amountLine{Label: "Given", Amount: doc.GivenAmount},
			amountLine{Label: "Remaining", Amount: doc.Remaining})
	}
	if doc.ShowGrandTotal {
		rows = append(rows,
			amountLine{Label: "Loan", Amount: doc.LoanAmount},
			amountLine{Label: "GRAND TOTAL", Amount: doc.GrandTotalWithLoan, Strong: true})
	}
	return rows
}

func (s *SpoolRenderer) divider(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Courier", "", 8)
	pdf.CellFormat(usableWidth, 3, "------------------------------------", "", 1, "C", false, 0, "")
}

func (s *SpoolRenderer) amountRow(pdf *gofpdf.Fpdf, label string, amount float64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Courier", style, 9)
	pdf.CellFormat(usableWidth*0.55, lineHeight, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(usableWidth*0.45, lineHeight, billing.FormatAmount(amount), "", 1, "R", false, 0, "")
}

func summaryChip(c billing.SummaryChip) string {
	name := c.ItemName
	if len(name) > 10 {
		name = name[:10]
	}
	return fmt.Sprintf("%s %skg/%dpk", name, billing.FormatAmount(c.Weight), c.Packs)
}
