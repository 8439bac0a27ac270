package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nvds/salesdesk/internal/observability"
	"github.com/nvds/salesdesk/internal/platform/httpx"
)

// Handler exposes the billing workstation over JSON.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs a handler. Metrics may be nil.
func NewHandler(logger *slog.Logger, engine *Engine, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		engine:   engine,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// MountRoutes registers billing endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/state", h.State)
	r.Get("/selection", h.Selection)
	r.Post("/select", h.Select)
	r.Delete("/select", h.Deselect)

	r.Post("/form", h.UpdateField)
	r.Post("/form/confirm", h.ConfirmField)
	r.Post("/form/clear", h.ClearForm)
	r.Post("/items/select", h.SelectItem)

	r.Post("/lines", h.SubmitLine)
	r.Post("/lines/{id}/edit", h.EditLine)
	r.Delete("/lines/{id}", h.DeleteLine)

	r.Post("/given-amount", h.SubmitGivenAmount)
	r.Post("/print", h.Print)
	r.Post("/hold-all", h.HoldAll)
	r.Post("/resync", h.Resync)

	r.Get("/loan/{customerCode}", h.Loan)
}

// stateResponse is the envelope every mutating endpoint returns.
type stateResponse struct {
	State   *StateView       `json:"state"`
	Focus   *FocusRequest    `json:"focus,omitempty"`
	Receipt *ReceiptDocument `json:"receipt,omitempty"`
	NoOp    bool             `json:"no_op,omitempty"`
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, stateResponse{State: h.engine.State()})
}

func (h *Handler) Selection(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	query := r.URL.Query().Get("q")
	switch kind {
	case "printed":
		httpx.JSON(w, http.StatusOK, map[string]any{"printed": h.engine.SearchPrinted(query)})
	case "held":
		httpx.JSON(w, http.StatusOK, map[string]any{"held": h.engine.SearchHeld(query)})
	case "", "all":
		httpx.JSON(w, http.StatusOK, map[string]any{
			"printed": h.engine.SearchPrinted(query),
			"held":    h.engine.SearchHeld(query),
		})
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "kind must be printed, held or all")
	}
}

type selectRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=held printed"`
	CustomerCode string `json:"customer_code" validate:"required"`
	BillNo       string `json:"bill_no"`
}

func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}
	var (
		state *StateView
		focus *FocusRequest
	)
	if req.Kind == "printed" {
		state, focus = h.engine.SelectPrintedCohort(r.Context(), req.CustomerCode, req.BillNo)
	} else {
		state, focus = h.engine.SelectHeldCustomer(r.Context(), req.CustomerCode)
	}
	httpx.JSON(w, http.StatusOK, stateResponse{State: state, Focus: focus})
}

func (h *Handler) Deselect(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, stateResponse{State: h.engine.Deselect()})
}

type fieldUpdateRequest struct {
	Field string `json:"field" validate:"required,oneof=customer_input supplier_code given_amount weight price packs"`
	Value string `json:"value"`
}

func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req fieldUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	state := h.engine.UpdateField(r.Context(), Field(req.Field), req.Value)
	httpx.JSON(w, http.StatusOK, stateResponse{State: state})
}

type confirmRequest struct {
	Field string `json:"field" validate:"required"`
}

// ConfirmField advances the entry sequence for one field. When the step
// carries an action the handler performs it, so a single confirm on the
// packs field both persists the line and reports the next focus.
func (h *Handler) ConfirmField(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	field := Field(req.Field)
	if ConsumesConfirm(field) {
		// The field's dropdown commits the choice on Enter itself; there is
		// no default transition to apply on the server.
		httpx.JSON(w, http.StatusOK, stateResponse{State: h.engine.State(), NoOp: true})
		return
	}
	step := Confirm(field)
	switch step.Action {
	case ActionSubmitLine:
		h.submitLine(w, r)
	case ActionSubmitGivenAmount:
		h.submitGivenAmount(w, r)
	default:
		httpx.JSON(w, http.StatusOK, stateResponse{State: h.engine.State(), Focus: step.Next})
	}
}

type clearFormRequest struct {
	DropBillContext bool `json:"drop_bill_context"`
}

func (h *Handler) ClearForm(w http.ResponseWriter, r *http.Request) {
	var req clearFormRequest
	// Body is optional; a bare POST clears the form only.
	_ = httpx.DecodeJSON(r, &req)
	httpx.JSON(w, http.StatusOK, stateResponse{State: h.engine.ClearForm(req.DropBillContext)})
}

type itemSelectRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) SelectItem(w http.ResponseWriter, r *http.Request) {
	var req itemSelectRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, focus := h.engine.SelectItem(req.Code)
	httpx.JSON(w, http.StatusOK, stateResponse{State: state, Focus: focus})
}

func (h *Handler) SubmitLine(w http.ResponseWriter, r *http.Request) {
	h.submitLine(w, r)
}

func (h *Handler) submitLine(w http.ResponseWriter, r *http.Request) {
	state, focus, err := h.engine.SubmitLine(r.Context())
	h.metrics.ObserveOperation("submit_line", err)
	if err != nil {
		h.respondError(w, err, focus)
		return
	}
	if state == nil {
		// Another submit is already in flight.
		httpx.JSON(w, http.StatusOK, stateResponse{State: h.engine.State(), NoOp: true})
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{State: state, Focus: focus})
}

func (h *Handler) EditLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.lineID(w, r)
	if !ok {
		return
	}
	state, focus, err := h.engine.EditLine(id)
	if err != nil {
		h.respondError(w, err, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{State: state, Focus: focus})
}

func (h *Handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.lineID(w, r)
	if !ok {
		return
	}
	state, err := h.engine.DeleteLine(r.Context(), id)
	h.metrics.ObserveOperation("delete_line", err)
	if err != nil {
		h.respondError(w, err, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{State: state})
}

func (h *Handler) SubmitGivenAmount(w http.ResponseWriter, r *http.Request) {
	h.submitGivenAmount(w, r)
}

func (h *Handler) submitGivenAmount(w http.ResponseWriter, r *http.Request) {
	state, focus, err := h.engine.SubmitGivenAmount(r.Context())
	h.metrics.ObserveOperation("given_amount", err)
	if err != nil {
		h.respondError(w, err, focus)
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{State: state, Focus: focus})
}

func (h *Handler) Print(w http.ResponseWriter, r *http.Request) {
	receipt, state, err := h.engine.Print(r.Context())
	h.metrics.ObserveOperation("print", err)
	if err != nil {
		h.respondError(w, err, nil)
		return
	}
	if receipt == nil {
		httpx.JSON(w, http.StatusOK, stateResponse{State: h.engine.State(), NoOp: true})
		return
	}
	h.metrics.ObserveReceipt()
	httpx.JSON(w, http.StatusOK, stateResponse{State: state, Receipt: receipt})
}

func (h *Handler) HoldAll(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.HoldAll(r.Context())
	h.metrics.ObserveOperation("hold_all", err)
	if err != nil {
		h.respondError(w, err, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{State: state})
}

func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Resync(r.Context())
	h.metrics.ObserveOperation("resync", err)
	if err != nil {
		h.respondError(w, err, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{State: h.engine.State()})
}

func (h *Handler) Loan(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "customerCode")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "customer code is required")
		return
	}
	balance := h.engine.LoanBalance(r.Context(), code)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"customer_code": code,
		"loan_amount":   balance,
	})
}

func (h *Handler) lineID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// respondError maps the billing error taxonomy onto problem responses.
// Validation problems carry the offending field and, when known, the focus
// target so the client can steer the operator back to it.
func (h *Handler) respondError(w http.ResponseWriter, err error, focus *FocusRequest) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		payload := map[string]any{
			"title":  "Validation Failed",
			"status": http.StatusUnprocessableEntity,
			"detail": verr.Message,
		}
		if verr.Field != "" {
			payload["field"] = verr.Field
		}
		if focus != nil {
			payload["focus"] = focus
		}
		httpx.JSON(w, http.StatusUnprocessableEntity, payload)
		return
	}
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	var perr *PrintError
	if errors.As(err, &perr) {
		h.logger.Error("print failed", "stage", perr.Stage, "error", perr.Err)
		httpx.Problem(w, http.StatusBadGateway, "Print Failed",
			"printing failed during "+perr.Stage+"; the desk has been resynchronized")
		return
	}
	var serr *PersistenceError
	if errors.As(err, &serr) {
		h.logger.Error("persistence failure", "op", serr.Op, "error", serr.Err)
		httpx.Problem(w, http.StatusBadGateway, "Persistence Failure", serr.Error())
		return
	}
	h.logger.Error("unhandled billing error", "error", err)
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
