package billing

import "fmt"

// Ledger is the authoritative in-memory collection of sale lines. Views are
// derived from the backing set and cached behind the ledger version; every
// mutation bumps the version, which is the only invalidation path.
//
// The ledger is not itself goroutine safe: the engine owns it and serialises
// access (see Engine).
type Ledger struct {
	lines   map[int64]*SaleLine
	order   []int64
	version uint64

	// carriers makes the carrier-line relationship an explicit attribute of
	// the open cohort rather than an inference from array order: it maps a
	// customer code to the chronologically-first non-printed line.
	carriers map[string]int64

	cache ledgerViews
}

type ledgerViews struct {
	version uint64
	drafts  []*SaleLine
	held    []*SaleLine
	printed []*SaleLine
}

// NewLedger builds an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		lines:    make(map[int64]*SaleLine),
		carriers: make(map[string]int64),
	}
}

// Version identifies the current ledger state; it changes on every mutation.
func (g *Ledger) Version() uint64 { return g.version }

// Len returns the number of lines in the ledger.
func (g *Ledger) Len() int { return len(g.order) }

// Get returns the line with the given id, or nil.
func (g *Ledger) Get(id int64) *SaleLine { return g.lines[id] }

// Insert adds a persisted line. Lines without identity stay in the entry
// form and never enter the ledger.
func (g *Ledger) Insert(line *SaleLine) error {
	if line == nil || line.ID == 0 {
		return fmt.Errorf("ledger: insert requires a persisted line")
	}
	if _, exists := g.lines[line.ID]; exists {
		return fmt.Errorf("ledger: line %d already present", line.ID)
	}
	g.lines[line.ID] = line
	g.order = append(g.order, line.ID)
	g.touch()
	return nil
}

// Update replaces the stored line, keeping its chronological position.
func (g *Ledger) Update(id int64, line *SaleLine) error {
	if _, ok := g.lines[id]; !ok {
		return fmt.Errorf("ledger: update %d: %w", id, ErrNotFound)
	}
	line.ID = id
	g.lines[id] = line
	g.touch()
	return nil
}

// Remove deletes a line.
func (g *Ledger) Remove(id int64) error {
	if _, ok := g.lines[id]; !ok {
		return fmt.Errorf("ledger: remove %d: %w", id, ErrNotFound)
	}
	delete(g.lines, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.touch()
	return nil
}

// MarkPrinted transitions every listed line to printed with the same bill
// number in a single version bump, so no intermediate state is observable.
// Unknown ids fail the whole batch before anything is modified.
func (g *Ledger) MarkPrinted(ids []int64, billNo string) error {
	for _, id := range ids {
		if _, ok := g.lines[id]; !ok {
			return fmt.Errorf("ledger: mark printed %d: %w", id, ErrNotFound)
		}
	}
	for _, id := range ids {
		l := g.lines[id]
		no := billNo
		l.Status = StatusPrinted
		l.BillNo = &no
	}
	g.touch()
	return nil
}

// MarkHeld transitions every listed line to held in a single version bump.
func (g *Ledger) MarkHeld(ids []int64) error {
	for _, id := range ids {
		if _, ok := g.lines[id]; !ok {
			return fmt.Errorf("ledger: mark held %d: %w", id, ErrNotFound)
		}
	}
	for _, id := range ids {
		g.lines[id].Status = StatusHeld
	}
	g.touch()
	return nil
}

// Reset replaces the whole ledger from a bootstrap snapshot. Collections are
// appended in draft, held, printed order; within each, snapshot order is
// taken as chronological.
func (g *Ledger) Reset(snap *Snapshot) {
	g.lines = make(map[int64]*SaleLine)
	g.order = g.order[:0]
	for _, group := range [][]*SaleLine{snap.Drafts, snap.Held, snap.Printed} {
		for _, l := range group {
			if l == nil || l.ID == 0 {
				continue
			}
			if _, dup := g.lines[l.ID]; dup {
				continue
			}
			g.lines[l.ID] = l
			g.order = append(g.order, l.ID)
		}
	}
	g.touch()
}

// All returns every line in chronological order.
func (g *Ledger) All() []*SaleLine {
	out := make([]*SaleLine, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.lines[id])
	}
	return out
}

// Drafts returns lines not yet held or printed.
func (g *Ledger) Drafts() []*SaleLine { return g.views().drafts }

// Held returns lines parked for later printing.
func (g *Ledger) Held() []*SaleLine { return g.views().held }

// Printed returns lines on closed bills.
func (g *Ledger) Printed() []*SaleLine { return g.views().printed }

// ByCustomer returns every line for a customer in chronological order.
func (g *Ledger) ByCustomer(code string) []*SaleLine {
	var out []*SaleLine
	for _, id := range g.order {
		if l := g.lines[id]; l.CustomerCode == code {
			out = append(out, l)
		}
	}
	return out
}

// Carrier returns the line conventionally holding the open cohort's given
// amount: the chronologically-first draft or held line for the customer.
func (g *Ledger) Carrier(customerCode string) *SaleLine {
	if id, ok := g.carriers[customerCode]; ok {
		if l := g.lines[id]; l != nil && !l.Printed() {
			return l
		}
	}
	return nil
}

func (g *Ledger) touch() {
	g.version++
	g.rebuildCarriers()
}

func (g *Ledger) rebuildCarriers() {
	for k := range g.carriers {
		delete(g.carriers, k)
	}
	for _, id := range g.order {
		l := g.lines[id]
		if l.Printed() {
			continue
		}
		if _, ok := g.carriers[l.CustomerCode]; !ok {
			g.carriers[l.CustomerCode] = id
		}
	}
}

func (g *Ledger) views() *ledgerViews {
	if g.cache.version == g.version && g.version != 0 {
		return &g.cache
	}
	v := ledgerViews{version: g.version}
	for _, id := range g.order {
		l := g.lines[id]
		switch l.Status {
		case StatusPrinted:
			v.printed = append(v.printed, l)
		case StatusHeld:
			v.held = append(v.held, l)
		default:
			v.drafts = append(v.drafts, l)
		}
	}
	g.cache = v
	return &g.cache
}
