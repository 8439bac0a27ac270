package billing

// SelectionKind names what the operator currently has selected.
type SelectionKind string

const (
	SelectionNone    SelectionKind = "none"
	SelectionHeld    SelectionKind = "held"
	SelectionPrinted SelectionKind = "printed"
)

// Session resolves which cohort is active and which lines the workstation
// displays. Selection is exclusive: picking a printed cohort clears any held
// selection and vice versa; re-selecting the same key toggles it off.
type Session struct {
	ledger *Ledger

	kind     SelectionKind
	customer string
	billNo   string

	// activeBillNo is the short-lived continuation pointer: while set, new
	// lines join that printed bill instead of opening a fresh draft cohort.
	activeBillNo string

	// legacyPrintedSelection restores the old behaviour for a printed
	// selection carrying no bill number: all printed lines of the customer
	// are shown and the bill number is resolved from the first of them.
	legacyPrintedSelection bool
}

// NewSession builds a selection tracker over the ledger.
func NewSession(ledger *Ledger) *Session {
	return &Session{ledger: ledger, kind: SelectionNone}
}

// SetLegacyPrintedSelection toggles the compatibility path for printed
// selections without a bill number.
func (s *Session) SetLegacyPrintedSelection(on bool) { s.legacyPrintedSelection = on }

// Kind returns the current selection kind.
func (s *Session) Kind() SelectionKind { return s.kind }

// Customer returns the selected customer code, if any.
func (s *Session) Customer() string { return s.customer }

// BillNo returns the selected printed bill number, if any.
func (s *Session) BillNo() string { return s.billNo }

// ActiveBillNo returns the continuation pointer for printed-bill appends.
func (s *Session) ActiveBillNo() string { return s.activeBillNo }

// SelectHeld makes a held customer the active cohort. Selecting the same
// customer again deselects. Returns true when a selection is now active.
func (s *Session) SelectHeld(customerCode string) bool {
	if s.kind == SelectionHeld && s.customer == customerCode {
		s.Clear()
		return false
	}
	s.kind = SelectionHeld
	s.customer = customerCode
	s.billNo = ""
	s.activeBillNo = ""
	return true
}

// SelectPrinted makes a printed (customer, bill) cohort active and arms the
// continuation pointer. Re-selecting the same cohort deselects. Returns
// true when a selection is now active.
func (s *Session) SelectPrinted(customerCode, billNo string) bool {
	if billNo == "" && s.legacyPrintedSelection {
		billNo = s.firstPrintedBill(customerCode)
	}
	if s.kind == SelectionPrinted && s.customer == customerCode && s.billNo == billNo {
		s.Clear()
		return false
	}
	s.kind = SelectionPrinted
	s.customer = customerCode
	s.billNo = billNo
	s.activeBillNo = billNo
	return true
}

// Clear drops any selection and the continuation pointer.
func (s *Session) Clear() {
	s.kind = SelectionNone
	s.customer = ""
	s.billNo = ""
	s.activeBillNo = ""
}

// Displayed resolves the line set the workstation shows: drafts always,
// plus the selected cohort's lines. Most recently added first.
func (s *Session) Displayed() []*SaleLine {
	lines := append([]*SaleLine(nil), s.ledger.Drafts()...)
	switch s.kind {
	case SelectionHeld:
		for _, l := range s.ledger.Held() {
			if l.CustomerCode == s.customer {
				lines = append(lines, l)
			}
		}
	case SelectionPrinted:
		for _, l := range s.ledger.Printed() {
			if l.CustomerCode != s.customer {
				continue
			}
			if s.billNo == "" {
				// Compatibility path: no bill separator, show every
				// printed line of the customer.
				lines = append(lines, l)
				continue
			}
			if l.BillNo != nil && *l.BillNo == s.billNo {
				lines = append(lines, l)
			}
		}
	}
	reverseLines(lines)
	return lines
}

// InferredCustomer returns the customer code of the most recent displayed
// line, used when the operator leaves the customer field empty.
func (s *Session) InferredCustomer() string {
	displayed := s.Displayed()
	if len(displayed) == 0 {
		return ""
	}
	return displayed[0].CustomerCode
}

// AllowNewLine enforces the printed-cohort append rule: new (non-edit)
// lines are rejected while a printed cohort is selected unless the
// continuation pointer is armed for it.
func (s *Session) AllowNewLine() error {
	if s.kind == SelectionPrinted && s.activeBillNo == "" {
		return validationf("", "cannot add new entries to a printed bill; edit existing records or select a held customer")
	}
	return nil
}

func (s *Session) firstPrintedBill(customerCode string) string {
	for _, l := range s.ledger.Printed() {
		if l.CustomerCode == customerCode && l.BillNo != nil {
			return *l.BillNo
		}
	}
	return ""
}

func reverseLines(lines []*SaleLine) {
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
}
