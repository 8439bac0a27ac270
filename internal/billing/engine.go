package billing

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// EntryForm mirrors the workstation entry fields. Values stay textual until
// the ingress boundary parses them with the fallback-to-zero policy.
type EntryForm struct {
	CustomerCode string `json:"customer_code"`
	CustomerName string `json:"customer_name"`
	SupplierCode string `json:"supplier_code"`
	ItemCode     string `json:"item_code"`
	ItemName     string `json:"item_name"`
	Weight       string `json:"weight"`
	PricePerKg   string `json:"price_per_kg"`
	PackDue      string `json:"pack_due"`
	Packs        string `json:"packs"`
	Total        string `json:"total"`
	GivenAmount  string `json:"given_amount"`
}

// EngineConfig tunes optional engine behaviour.
type EngineConfig struct {
	Logger                 *slog.Logger
	PrintTimeout           time.Duration
	LegacyPrintedSelection bool
	Clock                  func() time.Time
}

// Engine drives the billing workstation: it owns the ledger, the selection
// state and the entry form, talks to the persistence collaborator, and
// applies every mutation under one mutex so asynchronous completions never
// overlap.
type Engine struct {
	mu      sync.Mutex
	ledger  *Ledger
	index   *Index
	session *Session

	store    Store
	renderer Renderer
	logger   *slog.Logger
	now      func() time.Time

	customers []Customer
	items     []Item
	suppliers []Supplier

	form        EntryForm
	editingID   int64
	packCost    float64
	loanAmount  float64
	manualClear bool

	printTimeout time.Duration

	// Single-flight guards: a second submit or print while one is in
	// flight is a no-op, never a queued retry.
	submitting atomic.Bool
	printing   atomic.Bool
}

const defaultPrintTimeout = 3 * time.Second

// NewEngine wires the engine. Call Bootstrap before serving traffic.
func NewEngine(store Store, renderer Renderer, cfg EngineConfig) *Engine {
	ledger := NewLedger()
	session := NewSession(ledger)
	session.SetLegacyPrintedSelection(cfg.LegacyPrintedSelection)
	e := &Engine{
		ledger:       ledger,
		index:        NewIndex(ledger),
		session:      session,
		store:        store,
		renderer:     renderer,
		logger:       cfg.Logger,
		now:          cfg.Clock,
		printTimeout: cfg.PrintTimeout,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.printTimeout <= 0 {
		e.printTimeout = defaultPrintTimeout
	}
	return e
}

// Bootstrap consumes the startup snapshot. The engine never re-derives it
// implicitly; any later refresh goes through Resync.
func (e *Engine) Bootstrap(ctx context.Context) error {
	return e.Resync(ctx)
}

// Resync discards in-memory ledger and selection state and rebuilds both
// from a fresh persistence snapshot. Idempotent.
func (e *Engine) Resync(ctx context.Context) error {
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return &PersistenceError{Op: "snapshot", Err: err}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applySnapshotLocked(snap)
	return nil
}

func (e *Engine) applySnapshotLocked(snap *Snapshot) {
	e.ledger.Reset(snap)
	e.customers = snap.Customers
	e.items = snap.Items
	e.suppliers = snap.Suppliers
	e.session.Clear()
	e.clearFormLocked()
}

// ============================================================================
// STATE VIEW
// ============================================================================

// SelectionView describes the active selection for clients.
type SelectionView struct {
	Kind         SelectionKind `json:"kind"`
	CustomerCode string        `json:"customer_code,omitempty"`
	BillNo       string        `json:"bill_no,omitempty"`
	ActiveBillNo string        `json:"active_bill_no,omitempty"`
}

// StateView is the full workstation state returned after each operation.
type StateView struct {
	Displayed  []*SaleLine   `json:"displayed"`
	MainTotal  float64       `json:"main_total"`
	HeldTotal  float64       `json:"held_total"`
	Summary    []ItemTotals  `json:"item_summary"`
	Selection  SelectionView `json:"selection"`
	Form       EntryForm     `json:"form"`
	EditingID  int64         `json:"editing_id,omitempty"`
	PackCost   float64       `json:"pack_cost"`
	LoanAmount float64       `json:"loan_amount"`
}

// State snapshots the current workstation view.
func (e *Engine) State() *StateView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() *StateView {
	displayed := e.session.Displayed()
	return &StateView{
		Displayed: displayed,
		MainTotal: CohortTotal(displayed),
		HeldTotal: CohortTotal(e.ledger.Held()),
		Summary:   ItemSummary(displayed),
		Selection: SelectionView{
			Kind:         e.session.Kind(),
			CustomerCode: e.session.Customer(),
			BillNo:       e.session.BillNo(),
			ActiveBillNo: e.session.ActiveBillNo(),
		},
		Form:       e.form,
		EditingID:  e.editingID,
		PackCost:   e.packCost,
		LoanAmount: e.loanAmount,
	}
}

// SearchPrinted exposes the printed side of the selection index.
func (e *Engine) SearchPrinted(query string) []PrintedGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Printed(query)
}

// SearchHeld exposes the held side of the selection index.
func (e *Engine) SearchHeld(query string) []HeldGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Held(query)
}

// ============================================================================
// FORM FIELD HANDLING
// ============================================================================

// UpdateField applies one field edit plus its side effects and returns the
// refreshed view. Customer input edits re-resolve the held selection, the
// carrier given amount and the loan balance; numeric edits recompute the
// running total.
func (e *Engine) UpdateField(ctx context.Context, field Field, value string) *StateView {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch field {
	case FieldCustomerInput:
		e.applyCustomerInputLocked(ctx, value)
	case FieldSupplierCode:
		e.form.SupplierCode = strings.ToUpper(value)
	case FieldGivenAmount:
		e.form.GivenAmount = value
	case FieldWeight:
		e.form.Weight = value
		e.recomputeTotalLocked()
	case FieldPrice:
		e.form.PricePerKg = value
		e.recomputeTotalLocked()
	case FieldPacks:
		e.form.Packs = value
		e.recomputeTotalLocked()
	}
	return e.stateLocked()
}

func (e *Engine) applyCustomerInputLocked(ctx context.Context, value string) {
	e.form.CustomerCode = strings.ToUpper(value)
	trimmed := strings.TrimSpace(e.form.CustomerCode)
	e.manualClear = value == ""

	if trimmed == "" {
		e.loanAmount = 0
		e.form.GivenAmount = ""
		e.form.CustomerName = ""
		if e.session.Kind() == SelectionHeld {
			e.session.Clear()
		}
		return
	}

	matched := false
	for _, g := range e.index.Held("") {
		if strings.EqualFold(g.CustomerCode, trimmed) {
			if e.session.Kind() != SelectionHeld || e.session.Customer() != g.CustomerCode {
				e.session.SelectHeld(g.CustomerCode)
			}
			matched = true
			break
		}
	}
	if !matched && e.session.Kind() == SelectionHeld {
		e.session.Clear()
	}

	e.form.CustomerName = e.customerName(trimmed)
	if carrier := e.ledger.Carrier(trimmed); carrier != nil && carrier.GivenAmount != nil {
		e.form.GivenAmount = formatFloat(*carrier.GivenAmount)
	}
	e.loanAmount = e.fetchLoan(ctx, trimmed)
}

func (e *Engine) recomputeTotalLocked() {
	total := ComputeTotal(
		ParseAmount(e.form.Weight),
		ParseAmount(e.form.PricePerKg),
		ParseCount(e.form.Packs),
		ParseAmount(e.form.PackDue),
	)
	if total == 0 {
		e.form.Total = ""
		return
	}
	e.form.Total = strconv.FormatFloat(total, 'f', 2, 64)
}

// SelectItem populates the item-bound fields from the reference list and
// asks for focus on the weight field. Quantity fields are cleared unless a
// line is being edited.
func (e *Engine) SelectItem(code string) (*StateView, *FocusRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var item *Item
	for i := range e.items {
		if e.items[i].Code == code {
			item = &e.items[i]
			break
		}
	}
	if item == nil {
		e.form.ItemCode = ""
		e.form.ItemName = ""
		e.form.PackDue = ""
		e.form.Weight = ""
		e.form.PricePerKg = ""
		e.form.Packs = ""
		e.form.Total = ""
		e.packCost = 0
		return e.stateLocked(), nil
	}

	e.form.ItemCode = item.Code
	e.form.ItemName = item.Name
	e.form.PackDue = formatFloat(item.PackDue)
	e.packCost = item.PackCost
	if e.editingID == 0 {
		e.form.Weight = ""
		e.form.PricePerKg = ""
		e.form.Packs = ""
		e.form.Total = ""
	}
	return e.stateLocked(), &FocusRequest{Field: FieldWeight, Deferred: true}
}

// ============================================================================
// SELECTION
// ============================================================================

// SelectHeldCustomer toggles a held customer from the selection list.
func (e *Engine) SelectHeldCustomer(ctx context.Context, customerCode string) (*StateView, *FocusRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()

	selected := e.session.SelectHeld(customerCode)
	return e.afterSelectionLocked(ctx, customerCode, selected)
}

// SelectPrintedCohort toggles a printed (customer, bill) cohort from the
// selection list and arms the continuation pointer.
func (e *Engine) SelectPrintedCohort(ctx context.Context, customerCode, billNo string) (*StateView, *FocusRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()

	selected := e.session.SelectPrinted(customerCode, billNo)
	return e.afterSelectionLocked(ctx, customerCode, selected)
}

func (e *Engine) afterSelectionLocked(ctx context.Context, customerCode string, selected bool) (*StateView, *FocusRequest) {
	e.editingID = 0
	e.manualClear = false

	if !selected {
		e.clearFormLocked()
		return e.stateLocked(), &FocusRequest{Field: FieldCustomerInput, Deferred: true}
	}

	e.form = EntryForm{
		CustomerCode: customerCode,
		CustomerName: e.customerName(customerCode),
	}
	if carrier := e.cohortCarrierLocked(customerCode); carrier != nil && carrier.GivenAmount != nil {
		e.form.GivenAmount = formatFloat(*carrier.GivenAmount)
	}
	e.packCost = 0
	e.loanAmount = e.fetchLoan(ctx, customerCode)
	return e.stateLocked(), &FocusRequest{Field: FieldSupplierCode, Deferred: true}
}

// cohortCarrierLocked picks the line whose given amount the form echoes:
// the open-cohort carrier, or the first displayed line of a printed cohort.
func (e *Engine) cohortCarrierLocked(customerCode string) *SaleLine {
	if e.session.Kind() == SelectionPrinted {
		displayed := e.session.Displayed()
		for i := len(displayed) - 1; i >= 0; i-- {
			if displayed[i].CustomerCode == customerCode {
				return displayed[i]
			}
		}
		return nil
	}
	return e.ledger.Carrier(customerCode)
}

// Deselect drops whatever is selected and clears the form.
func (e *Engine) Deselect() *StateView {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Clear()
	e.clearFormLocked()
	return e.stateLocked()
}

// EditLine loads an existing line into the entry form for in-place editing
// and asks for focus (with select-all) on the weight field. Editing is
// allowed regardless of the line's state.
func (e *Engine) EditLine(id int64) (*StateView, *FocusRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.ledger.Get(id)
	if l == nil {
		return nil, nil, ErrNotFound
	}

	packDue := l.PackDue
	for _, it := range e.items {
		if it.Code == l.ItemCode && l.ItemCode != "" {
			packDue = it.PackDue
			break
		}
	}

	e.form = EntryForm{
		CustomerCode: l.CustomerCode,
		CustomerName: l.CustomerName,
		SupplierCode: l.SupplierCode,
		ItemCode:     l.ItemCode,
		ItemName:     l.ItemName,
		Weight:       formatFloat(l.Weight),
		PricePerKg:   formatFloat(l.PricePerKg),
		PackDue:      formatFloat(packDue),
		Packs:        strconv.Itoa(l.Packs),
		Total:        formatFloat(l.Total),
	}
	if l.GivenAmount != nil {
		e.form.GivenAmount = formatFloat(*l.GivenAmount)
	}
	e.editingID = id
	e.manualClear = false
	return e.stateLocked(), &FocusRequest{Field: FieldWeight, Deferred: true, Select: true}, nil
}

// ClearForm resets the entry form; the continuation pointer survives unless
// dropBillContext is set.
func (e *Engine) ClearForm(dropBillContext bool) *StateView {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearFormLocked()
	if dropBillContext {
		e.session.Clear()
	}
	return e.stateLocked()
}

func (e *Engine) clearFormLocked() {
	e.form = EntryForm{}
	e.editingID = 0
	e.packCost = 0
	e.loanAmount = 0
	e.manualClear = false
}

// ============================================================================
// LINE SUBMISSION
// ============================================================================

// SubmitLine commits the entry form as a new line, or as an in-place update
// when a line is being edited. A submit while another is in flight is a
// no-op. On success the quantity fields reset, the customer sticks, and
// focus moves to the supplier field.
func (e *Engine) SubmitLine(ctx context.Context) (*StateView, *FocusRequest, error) {
	if !e.submitting.CompareAndSwap(false, true) {
		return nil, nil, nil
	}
	defer e.submitting.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	customer := strings.TrimSpace(e.form.CustomerCode)
	if customer == "" && !e.manualClear {
		customer = e.session.InferredCustomer()
	}
	if customer == "" {
		return nil, &FocusRequest{Field: FieldCustomerInput, Deferred: true},
			validationf(string(FieldCustomerInput), "customer code is required")
	}
	customer = strings.ToUpper(customer)

	editing := e.editingID != 0
	if !editing {
		if err := e.session.AllowNewLine(); err != nil {
			return nil, nil, err
		}
	}

	payload := LinePayload{
		CustomerCode: customer,
		CustomerName: e.form.CustomerName,
		SupplierCode: strings.ToUpper(e.form.SupplierCode),
		ItemCode:     e.form.ItemCode,
		ItemName:     e.form.ItemName,
		Weight:       ParseAmount(e.form.Weight),
		PricePerKg:   ParseAmount(e.form.PricePerKg),
		PackDue:      ParseAmount(e.form.PackDue),
		Packs:        ParseCount(e.form.Packs),
		Total:        ParseAmount(e.form.Total),
	}
	if payload.Total == 0 {
		payload.Total = ComputeTotal(payload.Weight, payload.PricePerKg, payload.Packs, payload.PackDue)
	}

	if !editing {
		switch {
		case e.session.Kind() == SelectionPrinted && e.session.ActiveBillNo() != "":
			// Continuation: the new line joins the already-printed bill.
			no := e.session.ActiveBillNo()
			payload.Status = StatusPrinted
			payload.BillNo = &no
		case e.session.Kind() == SelectionHeld:
			payload.Status = StatusHeld
		}
	}

	// The carrier line alone persists the cohort's given amount: the first
	// line of a new cohort, or the carrier itself when edited.
	if given := strings.TrimSpace(e.form.GivenAmount); given != "" {
		carrier := e.ledger.Carrier(customer)
		firstForCustomer := len(e.ledger.ByCustomer(customer)) == 0
		if (!editing && firstForCustomer) || (editing && carrier != nil && carrier.ID == e.editingID) {
			v := ParseAmount(given)
			payload.GivenAmount = &v
		}
	}

	var (
		line *SaleLine
		err  error
	)
	if editing {
		line, err = e.store.UpdateLine(ctx, e.editingID, payload)
	} else {
		line, err = e.store.CreateLine(ctx, payload)
	}
	if err != nil {
		return nil, nil, persistence("save line", err)
	}

	if editing {
		if err := e.ledger.Update(line.ID, line); err != nil {
			return nil, nil, err
		}
	} else {
		if line.CreatedAt.IsZero() {
			line.CreatedAt = e.now()
		}
		if err := e.ledger.Insert(line); err != nil {
			return nil, nil, err
		}
	}

	e.form = EntryForm{
		CustomerCode: e.form.CustomerCode,
		CustomerName: e.form.CustomerName,
	}
	if e.form.CustomerCode == "" {
		e.form.CustomerCode = customer
	}
	e.editingID = 0
	e.manualClear = false
	e.packCost = 0

	e.logger.Info("line committed",
		slog.Int64("id", line.ID),
		slog.String("customer", line.CustomerCode),
		slog.Bool("edit", editing))
	return e.stateLocked(), &FocusRequest{Field: FieldSupplierCode, Deferred: true}, nil
}

// DeleteLine removes a persisted line; deleting the line being edited also
// clears the form.
func (e *Engine) DeleteLine(ctx context.Context, id int64) (*StateView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ledger.Get(id) == nil {
		return nil, ErrNotFound
	}
	if err := e.store.DeleteLine(ctx, id); err != nil {
		return nil, persistence("delete line", err)
	}
	if err := e.ledger.Remove(id); err != nil {
		return nil, err
	}
	if e.editingID == id {
		e.clearFormLocked()
	}
	return e.stateLocked(), nil
}

// ============================================================================
// GIVEN-AMOUNT DISTRIBUTION
// ============================================================================

// SubmitGivenAmount distributes the tendered amount across exactly the
// currently displayed, persisted lines. Updates fan out concurrently and
// the engine joins all of them before touching the ledger; any rejection
// leaves the local ledger unmodified. Repeating the same amount over the
// same cohort is idempotent.
func (e *Engine) SubmitGivenAmount(ctx context.Context) (*StateView, *FocusRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitGivenAmountLocked(ctx)
}

func (e *Engine) submitGivenAmountLocked(ctx context.Context) (*StateView, *FocusRequest, error) {
	customer := strings.TrimSpace(e.form.CustomerCode)
	if customer == "" && !e.manualClear {
		customer = e.session.InferredCustomer()
	}
	if customer == "" {
		return nil, &FocusRequest{Field: FieldCustomerInput, Deferred: true},
			validationf(string(FieldCustomerInput), "enter or select a customer code first")
	}
	if strings.TrimSpace(e.form.GivenAmount) == "" {
		return nil, nil, validationf(string(FieldGivenAmount), "given amount is required")
	}

	var targets []*SaleLine
	for _, l := range e.session.Displayed() {
		if l.ID != 0 {
			targets = append(targets, l)
		}
	}
	if len(targets) == 0 {
		return nil, nil, validationf("", "no sales records found to update")
	}

	amount := ParseAmount(e.form.GivenAmount)
	updated := make([]*SaleLine, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			line, err := e.store.SetGivenAmount(gctx, target.ID, amount)
			if err != nil {
				return err
			}
			updated[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Some server-side writes may have landed; the local ledger stays
		// untouched and the operator decides whether to retry or resync.
		return nil, nil, persistence("distribute given amount", err)
	}

	for _, line := range updated {
		if line == nil {
			continue
		}
		if err := e.ledger.Update(line.ID, line); err != nil {
			return nil, nil, err
		}
	}

	e.form.GivenAmount = ""
	e.logger.Info("given amount distributed",
		slog.String("customer", customer),
		slog.Float64("amount", amount),
		slog.Int("lines", len(targets)))
	return e.stateLocked(), &FocusRequest{Field: FieldSupplierCode, Deferred: true}, nil
}

// ============================================================================
// PRINT / HOLD / SUPPORT
// ============================================================================

// Print closes the active cohort: it validates locally, requests a fresh
// bill number and the loan balance concurrently (the loan lookup may fail
// independently and defaults to zero), awaits the physical render, then
// transitions the cohort atomically. Render or mark failure surfaces a
// PrintError and forces a resynchronize, since partial server-side state
// may already exist.
func (e *Engine) Print(ctx context.Context) (*ReceiptDocument, *StateView, error) {
	if !e.printing.CompareAndSwap(false, true) {
		return nil, nil, nil
	}
	defer e.printing.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := AllowCommand(CommandPrint, e.session.Kind()); err != nil {
		return nil, nil, err
	}

	customer := strings.TrimSpace(e.form.CustomerCode)
	if customer == "" {
		customer = e.session.InferredCustomer()
	}
	if customer == "" {
		return nil, nil, validationf(string(FieldCustomerInput), "customer code is required")
	}
	customer = strings.ToUpper(customer)

	var cohort []*SaleLine
	for _, l := range e.session.Displayed() {
		if l.ID != 0 && l.CustomerCode == customer {
			cohort = append(cohort, l)
		}
	}
	if len(cohort) == 0 {
		return nil, nil, validationf("", "no sales records to print")
	}
	for _, l := range cohort {
		if l.PricePerKg == 0 {
			return nil, nil, validationf(string(FieldPrice),
				"price per kg is missing on %s; set it before printing", displayName(l))
		}
	}

	ids := make([]int64, len(cohort))
	for i, l := range cohort {
		ids[i] = l.ID
	}

	// Settle both requests; only the mark-printed result is fatal.
	var (
		wg      sync.WaitGroup
		billNo  string
		markErr error
		loan    float64
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		billNo, markErr = e.store.MarkPrinted(ctx, ids, true)
	}()
	go func() {
		defer wg.Done()
		loan = e.fetchLoan(ctx, customer)
	}()
	wg.Wait()

	if markErr != nil {
		return nil, nil, e.printFailureLocked(ctx, "mark", markErr)
	}

	doc := BuildReceipt(cohort, billNo, e.displayCustomerName(customer), e.customerContact(customer), loan, e.now())

	rctx, cancel := context.WithTimeout(ctx, e.printTimeout)
	err := e.renderer.Render(rctx, doc)
	cancel()
	if err != nil {
		return nil, nil, e.printFailureLocked(ctx, "render", err)
	}

	if err := e.ledger.MarkPrinted(ids, billNo); err != nil {
		return nil, nil, e.printFailureLocked(ctx, "apply", err)
	}

	// The desk returns to a clean slate after printing. Follow-up lines join
	// the bill only after the operator explicitly reselects it.
	e.session.Clear()
	e.clearFormLocked()

	e.logger.Info("bill printed",
		slog.String("customer", customer),
		slog.String("bill_no", billNo),
		slog.Int("lines", len(ids)))
	return doc, e.stateLocked(), nil
}

func (e *Engine) printFailureLocked(ctx context.Context, stage string, cause error) error {
	e.logger.Error("print failed, resynchronizing",
		slog.String("stage", stage),
		slog.Any("error", cause))
	if snap, err := e.store.Snapshot(ctx); err == nil {
		e.applySnapshotLocked(snap)
	} else {
		e.logger.Error("resync after print failure", slog.Any("error", err))
	}
	return &PrintError{Stage: stage, Err: cause}
}

// HoldAll parks every current draft and held line. Blocked while a printed
// selection is active; an empty target set is a no-op.
func (e *Engine) HoldAll(ctx context.Context) (*StateView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := AllowCommand(CommandHoldAll, e.session.Kind()); err != nil {
		return nil, err
	}

	var ids []int64
	for _, l := range e.ledger.Drafts() {
		ids = append(ids, l.ID)
	}
	for _, l := range e.ledger.Held() {
		ids = append(ids, l.ID)
	}
	if len(ids) == 0 {
		return e.stateLocked(), nil
	}

	if err := e.store.MarkAllHeld(ctx, ids); err != nil {
		return nil, persistence("mark all held", err)
	}
	if err := e.ledger.MarkHeld(ids); err != nil {
		return nil, err
	}
	e.session.Clear()
	e.clearFormLocked()
	e.logger.Info("lines held", slog.Int("count", len(ids)))
	return e.stateLocked(), nil
}

// LoanBalance reports the customer's loan balance; lookup failures degrade
// to zero rather than blocking entry.
func (e *Engine) LoanBalance(ctx context.Context, customerCode string) float64 {
	return e.fetchLoan(ctx, customerCode)
}

func (e *Engine) fetchLoan(ctx context.Context, customerCode string) float64 {
	if customerCode == "" {
		return 0
	}
	v, err := e.store.LoanBalance(ctx, customerCode)
	if err != nil {
		e.logger.Warn("loan lookup failed",
			slog.String("customer", customerCode),
			slog.Any("error", err))
		return 0
	}
	return v
}

func (e *Engine) customerName(code string) string {
	for _, c := range e.customers {
		if strings.EqualFold(c.Code, code) {
			return c.Name
		}
	}
	return ""
}

func (e *Engine) displayCustomerName(code string) string {
	if name := e.customerName(code); name != "" {
		return name
	}
	return code
}

func (e *Engine) customerContact(code string) string {
	for _, c := range e.customers {
		if strings.EqualFold(c.Code, code) {
			return c.Contact
		}
	}
	return ""
}

func displayName(l *SaleLine) string {
	if l.ItemName != "" {
		return l.ItemName
	}
	return "line " + strconv.FormatInt(l.ID, 10)
}

func persistence(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
