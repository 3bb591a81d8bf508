// Package dashhttp exposes the dashboard pages as JSON view models.
package dashhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lab-group/labdash/internal/dashboard"
	"github.com/lab-group/labdash/internal/platform/httpx"
	"github.com/lab-group/labdash/internal/shared"
)

const requestTimeout = 10 * time.Second

const productPageLimit = 100

// DashboardService is the view-model contract used by the handler.
type DashboardService interface {
	Entities(ctx context.Context) (dashboard.EntityList, error)
	Overview(ctx context.Context, entityCode string, period shared.Period) (dashboard.Overview, error)
	Bank(ctx context.Context, entityCode string) (dashboard.BankView, error)
	Invoices(ctx context.Context, entityCode string, filter dashboard.InvoiceFilter) (dashboard.InvoiceView, error)
	Products(ctx context.Context, entityCode string, limit int) (dashboard.ProductView, error)
	Map(ctx context.Context, entityCode string) (dashboard.MapView, error)
	Costs(ctx context.Context, entityCode string, period shared.Period) (dashboard.CostView, error)
	Cashflow(ctx context.Context, entityCode string, period shared.Period, months int) (dashboard.CashflowView, error)
	Balance(ctx context.Context, entityCode string) (dashboard.BalanceView, error)
}

// Handler coordinates HTTP requests for the dashboard pages.
type Handler struct {
	logger  *slog.Logger
	service DashboardService
	bufPool sync.Pool
	now     func() time.Time
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, service DashboardService) *Handler {
	h := &Handler{logger: logger, service: service, now: time.Now}
	h.bufPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleEntities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := h.service.Entities(ctx)
	if err != nil {
		h.respondServiceError(w, "list entities", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Ongeldige aanvraag", "periode moet het formaat JJJJ-MM hebben")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Overview(ctx, entityParam(r), period)
	if err != nil {
		h.respondServiceError(w, "build overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleBank(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Bank(ctx, entityParam(r))
	if err != nil {
		h.respondServiceError(w, "build bank view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleInvoices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Invoices(ctx, entityParam(r), invoiceFilter(r))
	if err != nil {
		h.respondServiceError(w, "build invoice view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleInvoiceCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Invoices(ctx, entityParam(r), invoiceFilter(r))
	if err != nil {
		h.respondServiceError(w, "build invoice view", err)
		return
	}
	h.streamCSV(w, "facturen", view.Entity, func(buf *bytes.Buffer) error {
		return dashboard.WriteInvoiceCSV(buf, view)
	})
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Products(ctx, entityParam(r), limitParam(r, productPageLimit))
	if err != nil {
		h.respondServiceError(w, "build product view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleProductCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Products(ctx, entityParam(r), 0)
	if err != nil {
		h.respondServiceError(w, "build product view", err)
		return
	}
	h.streamCSV(w, "producten", view.Entity, func(buf *bytes.Buffer) error {
		return dashboard.WriteProductCSV(buf, view)
	})
}

func (h *Handler) handleMap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Map(ctx, entityParam(r))
	if err != nil {
		h.respondServiceError(w, "build map view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleCashflow(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Ongeldige aanvraag", "periode moet het formaat JJJJ-MM hebben")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Cashflow(ctx, entityParam(r), period, limitParam(r, 6))
	if err != nil {
		h.respondServiceError(w, "build cashflow view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Balance(ctx, entityParam(r))
	if err != nil {
		h.respondServiceError(w, "build balance view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleCosts(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Ongeldige aanvraag", "periode moet het formaat JJJJ-MM hebben")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Costs(ctx, entityParam(r), period)
	if err != nil {
		h.respondServiceError(w, "build cost view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleCostCSV(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Ongeldige aanvraag", "periode moet het formaat JJJJ-MM hebben")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Costs(ctx, entityParam(r), period)
	if err != nil {
		h.respondServiceError(w, "build cost view", err)
		return
	}
	h.streamCSV(w, "kosten", view.Entity, func(buf *bytes.Buffer) error {
		return dashboard.WriteCostCSV(buf, view)
	})
}

func (h *Handler) handleCashflowCSV(w http.ResponseWriter, r *http.Request) {
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Ongeldige aanvraag", "periode moet het formaat JJJJ-MM hebben")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.Cashflow(ctx, entityParam(r), period, limitParam(r, 6))
	if err != nil {
		h.respondServiceError(w, "build cashflow view", err)
		return
	}
	h.streamCSV(w, "cashflow", view.Entity, func(buf *bytes.Buffer) error {
		return dashboard.WriteCashflowCSV(buf, view)
	})
}

func (h *Handler) streamCSV(w http.ResponseWriter, name, entity string, write func(*bytes.Buffer) error) {
	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()

	if err := write(buf); err != nil {
		h.respondServiceError(w, "write csv", err)
		return
	}
	scope := entity
	if scope == "" {
		scope = "alle"
	}
	filename := fmt.Sprintf("%s-%s.csv", name, scope)
	httpx.Attachment(w, filename, "text/csv; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, shared.ErrNoSnapshot):
		httpx.Problem(w, http.StatusServiceUnavailable, "Cijfers niet beschikbaar",
			"er is nog geen cijferoverzicht geladen; probeer het over enkele minuten opnieuw")
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Onbekend bedrijf", "het gevraagde bedrijf bestaat niet")
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Interne fout", "probeer het later opnieuw")
	}
}

// parsePeriod reads the period parameter, defaulting to the current month.
func (h *Handler) parsePeriod(r *http.Request) (shared.Period, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("period"))
	if raw == "" {
		return shared.PeriodOf(h.now()), nil
	}
	return shared.ParsePeriod(raw)
}

func entityParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("entity"))
}

func limitParam(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func invoiceFilter(r *http.Request) dashboard.InvoiceFilter {
	q := r.URL.Query()
	return dashboard.InvoiceFilter{
		Direction:  strings.TrimSpace(q.Get("direction")),
		UnpaidOnly: q.Get("unpaid") == "1" || q.Get("unpaid") == "true",
		Partner:    q.Get("partner"),
	}
}

// HandleOverviewForTest exposes the overview handler for tests.
func (h *Handler) HandleOverviewForTest(w http.ResponseWriter, r *http.Request) {
	h.handleOverview(w, r)
}

// HandleInvoicesForTest exposes the invoice handler for tests.
func (h *Handler) HandleInvoicesForTest(w http.ResponseWriter, r *http.Request) {
	h.handleInvoices(w, r)
}

// HandleInvoiceCSVForTest exposes the invoice export for tests.
func (h *Handler) HandleInvoiceCSVForTest(w http.ResponseWriter, r *http.Request) {
	h.handleInvoiceCSV(w, r)
}

// HandleBalanceForTest exposes the balance handler for tests.
func (h *Handler) HandleBalanceForTest(w http.ResponseWriter, r *http.Request) {
	h.handleBalance(w, r)
}
