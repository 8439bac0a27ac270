package billing

// Field identifies one entry field in the keyboard workflow.
type Field string

const (
	FieldCustomerInput  Field = "customer_input"
	FieldCustomerSelect Field = "customer_select"
	FieldGivenAmount    Field = "given_amount"
	FieldSupplierCode   Field = "supplier_code"
	FieldItemSelect     Field = "item_select"
	FieldWeight         Field = "weight"
	FieldPrice          Field = "price"
	FieldPacks          Field = "packs"
)

// WorkflowAction is what a confirm keypress triggers beyond a focus move.
type WorkflowAction string

const (
	ActionNone              WorkflowAction = ""
	ActionSubmitLine        WorkflowAction = "submit_line"
	ActionSubmitGivenAmount WorkflowAction = "submit_given_amount"
)

// FocusRequest asks the client to move keyboard focus. Deferred requests
// are applied on the client's next idle tick, after the confirmed field's
// own side effects have settled.
type FocusRequest struct {
	Field    Field `json:"field"`
	Deferred bool  `json:"deferred"`
	Select   bool  `json:"select,omitempty"`
}

// Step is the outcome of confirming a field.
type Step struct {
	Next   *FocusRequest  `json:"next,omitempty"`
	Action WorkflowAction `json:"action,omitempty"`
}

// transitions is the confirm-key table, keyed by field identity rather
// than any positional ordering. price deliberately advances to packs
// without submitting; packs and given_amount are the two terminals.
var transitions = map[Field]Field{
	FieldCustomerInput: FieldSupplierCode,
	FieldSupplierCode:  FieldItemSelect,
	FieldItemSelect:    FieldWeight,
	FieldWeight:        FieldPrice,
	FieldPrice:         FieldPacks,
}

// selfConfirming fields consume the confirm key themselves (their dropdown
// commits a choice on Enter); the controller must not intercept it.
var selfConfirming = map[Field]bool{
	FieldCustomerSelect: true,
	FieldItemSelect:     true,
}

// ConsumesConfirm reports whether the field handles the confirm key
// internally before any default transition applies.
func ConsumesConfirm(f Field) bool { return selfConfirming[f] }

// Confirm resolves a confirm keypress on the given field against the
// transition table.
func Confirm(f Field) Step {
	switch f {
	case FieldPacks:
		return Step{Action: ActionSubmitLine}
	case FieldGivenAmount:
		return Step{Action: ActionSubmitGivenAmount}
	}
	if next, ok := transitions[f]; ok {
		return Step{Next: &FocusRequest{Field: next, Deferred: true}}
	}
	return Step{}
}

// Command is a global accelerator, independent of field focus.
type Command string

const (
	CommandPrint   Command = "print"
	CommandHoldAll Command = "hold_all"
	CommandResync  Command = "resync"
)

// AllowCommand gates accelerators against the current selection: printing
// an already-printed cohort is blocked, and hold-all is blocked while any
// printed selection is active. Resync is always allowed.
func AllowCommand(cmd Command, sel SelectionKind) error {
	switch cmd {
	case CommandPrint:
		if sel == SelectionPrinted {
			return validationf("", "bill already printed")
		}
	case CommandHoldAll:
		if sel == SelectionPrinted {
			return validationf("", "cannot hold lines while a printed bill is selected")
		}
	}
	return nil
}
