// Package closehttp exposes the month-end close review over HTTP.
package closehttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lab-group/labdash/internal/close"
	"github.com/lab-group/labdash/internal/platform/httpx"
	"github.com/lab-group/labdash/internal/shared"
)

// sessionKeyUnlocked marks a session that passed the close gate. The flag
// lives only in the session, so a fresh browser session always starts
// locked.
const sessionKeyUnlocked = "close_authenticated"

const requestTimeout = 10 * time.Second

// ReportBuilder assembles the close report for an entity scope and period.
type ReportBuilder interface {
	Build(ctx context.Context, entityCode string, period shared.Period, vatMonthly bool) (*close.Report, error)
}

// AccessGate verifies the close password.
type AccessGate interface {
	Configured() bool
	Verify(password string) error
}

// Handler coordinates HTTP requests for the close review.
type Handler struct {
	logger   *slog.Logger
	gate     AccessGate
	reporter ReportBuilder
	validate *validator.Validate
	bufPool  sync.Pool
	now      func() time.Time
}

// NewHandler constructs the close HTTP handler.
func NewHandler(logger *slog.Logger, gate AccessGate, reporter ReportBuilder) *Handler {
	h := &Handler{
		logger:   logger,
		gate:     gate,
		reporter: reporter,
		validate: validator.New(),
		now:      time.Now,
	}
	h.bufPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type statusResponse struct {
	Configured        bool     `json:"configured"`
	Authenticated     bool     `json:"authenticated"`
	SetupInstructions []string `json:"setup_instructions,omitempty"`
}

// handleStatus reports gate state. Always 200: an unconfigured gate is not
// an error, the response carries the setup steps instead and the rest of
// the dashboard stays reachable.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Configured:    h.gate.Configured(),
		Authenticated: h.unlocked(r),
	}
	if !resp.Configured {
		resp.SetupInstructions = close.SetupInstructions()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Ongeldige aanvraag", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Ongeldige aanvraag", "wachtwoord is verplicht")
		return
	}

	err := h.gate.Verify(req.Password)
	switch {
	case errors.Is(err, shared.ErrGateNotConfigured):
		httpx.JSON(w, http.StatusConflict, statusResponse{
			Configured:        false,
			SetupInstructions: close.SetupInstructions(),
		})
		return
	case errors.Is(err, shared.ErrInvalidCredentials):
		h.logger.Warn("close login rejected", slog.String("remote", r.RemoteAddr))
		httpx.Problem(w, http.StatusUnauthorized, "Toegang geweigerd", "het wachtwoord is onjuist")
		return
	case err != nil:
		h.logger.Error("close login", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Interne fout", "probeer het later opnieuw")
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Set(sessionKeyUnlocked, "1")
	}
	httpx.JSON(w, http.StatusOK, statusResponse{Configured: true, Authenticated: true})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Delete(sessionKeyUnlocked)
	}
	httpx.JSON(w, http.StatusOK, statusResponse{Configured: h.gate.Configured()})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if !h.requireUnlocked(w, r) {
		return
	}
	report, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "json", "application/json; charset=utf-8", close.ExportJSON)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv; charset=utf-8", close.ExportCSV)
}

func (h *Handler) handleExportText(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "txt", "text/plain; charset=utf-8", close.ExportText)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, *close.Report) error) {
	if !h.requireUnlocked(w, r) {
		return
	}
	report, ok := h.buildReport(w, r)
	if !ok {
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()

	if err := write(buf, report); err != nil {
		h.logger.Error("write export", slog.String("format", ext), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Interne fout", "export kon niet worden opgesteld")
		return
	}

	scope := report.Entity
	if scope == "" {
		scope = "alle"
	}
	filename := fmt.Sprintf("afsluiting-%s-%s.%s", scope, report.Period, ext)
	httpx.Attachment(w, filename, contentType)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream export", slog.Any("error", err))
	}
}

func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request) (*close.Report, bool) {
	entity := strings.TrimSpace(r.URL.Query().Get("entity"))
	period, err := h.parsePeriod(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Ongeldige aanvraag", "periode moet het formaat JJJJ-MM hebben")
		return nil, false
	}
	vatMonthly := r.URL.Query().Get("vat") == "monthly"

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.reporter.Build(ctx, entity, period, vatMonthly)
	switch {
	case errors.Is(err, shared.ErrNoSnapshot):
		httpx.Problem(w, http.StatusServiceUnavailable, "Cijfers niet beschikbaar",
			"er is nog geen cijferoverzicht geladen; probeer het over enkele minuten opnieuw")
		return nil, false
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Onbekend bedrijf", "het gevraagde bedrijf bestaat niet")
		return nil, false
	case err != nil:
		h.logger.Error("build close report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Interne fout", "rapport kon niet worden opgesteld")
		return nil, false
	}
	return report, true
}

// parsePeriod reads the period parameter, defaulting to the month before
// now. The close always reviews a finished month.
func (h *Handler) parsePeriod(r *http.Request) (shared.Period, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("period"))
	if raw == "" {
		return shared.PeriodOf(h.now()).Previous(), nil
	}
	return shared.ParsePeriod(raw)
}

func (h *Handler) unlocked(r *http.Request) bool {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return false
	}
	return sess.Get(sessionKeyUnlocked) == "1"
}

func (h *Handler) requireUnlocked(w http.ResponseWriter, r *http.Request) bool {
	if !h.gate.Configured() {
		httpx.JSON(w, http.StatusOK, statusResponse{
			Configured:        false,
			SetupInstructions: close.SetupInstructions(),
		})
		return false
	}
	if !h.unlocked(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Toegang vereist",
			"voer eerst het afsluitwachtwoord in")
		return false
	}
	return true
}

// HandleStatusForTest exposes the status handler for tests.
func (h *Handler) HandleStatusForTest(w http.ResponseWriter, r *http.Request) { h.handleStatus(w, r) }

// HandleLoginForTest exposes the login handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) { h.handleLogin(w, r) }

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) { h.handleLogout(w, r) }

// HandleReportForTest exposes the report handler for tests.
func (h *Handler) HandleReportForTest(w http.ResponseWriter, r *http.Request) { h.handleReport(w, r) }

// HandleExportForTest exposes the named export handler for tests.
func (h *Handler) HandleExportForTest(format string) http.HandlerFunc {
	switch format {
	case "csv":
		return h.handleExportCSV
	case "txt":
		return h.handleExportText
	default:
		return h.handleExportJSON
	}
}
