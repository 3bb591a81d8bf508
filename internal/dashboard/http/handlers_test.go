package dashhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lab-group/labdash/internal/dashboard"
	"github.com/lab-group/labdash/internal/shared"
	"github.com/lab-group/labdash/internal/snapshot"
)

type stubService struct {
	overviewFn func(ctx context.Context, entityCode string, period shared.Period) (dashboard.Overview, error)
	invoicesFn func(ctx context.Context, entityCode string, filter dashboard.InvoiceFilter) (dashboard.InvoiceView, error)
	balanceFn  func(ctx context.Context, entityCode string) (dashboard.BalanceView, error)
}

func (s *stubService) Entities(context.Context) (dashboard.EntityList, error) {
	return dashboard.EntityList{}, nil
}

func (s *stubService) Overview(ctx context.Context, entityCode string, period shared.Period) (dashboard.Overview, error) {
	if s.overviewFn == nil {
		return dashboard.Overview{Entity: entityCode, Period: period.String()}, nil
	}
	return s.overviewFn(ctx, entityCode, period)
}

func (s *stubService) Bank(context.Context, string) (dashboard.BankView, error) {
	return dashboard.BankView{}, nil
}

func (s *stubService) Invoices(ctx context.Context, entityCode string, filter dashboard.InvoiceFilter) (dashboard.InvoiceView, error) {
	if s.invoicesFn == nil {
		return dashboard.InvoiceView{Entity: entityCode}, nil
	}
	return s.invoicesFn(ctx, entityCode, filter)
}

func (s *stubService) Products(context.Context, string, int) (dashboard.ProductView, error) {
	return dashboard.ProductView{}, nil
}

func (s *stubService) Map(context.Context, string) (dashboard.MapView, error) {
	return dashboard.MapView{}, nil
}

func (s *stubService) Costs(context.Context, string, shared.Period) (dashboard.CostView, error) {
	return dashboard.CostView{
		Entity: "shops",
		Period: "2026-07",
		Rows:   []dashboard.CostRow{{Group: "40", Name: "Personeelskosten", Amount: 9000}},
		Total:  9000,
	}, nil
}

func (s *stubService) Cashflow(context.Context, string, shared.Period, int) (dashboard.CashflowView, error) {
	return dashboard.CashflowView{}, nil
}

func (s *stubService) Balance(ctx context.Context, entityCode string) (dashboard.BalanceView, error) {
	if s.balanceFn == nil {
		return dashboard.BalanceView{Entity: entityCode}, nil
	}
	return s.balanceFn(ctx, entityCode)
}

func newTestHandler(svc DashboardService) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc)
	h.WithNow(func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) })
	return h
}

func TestOverviewDefaultsToCurrentMonth(t *testing.T) {
	var gotPeriod shared.Period
	var gotEntity string
	svc := &stubService{
		overviewFn: func(ctx context.Context, entityCode string, period shared.Period) (dashboard.Overview, error) {
			gotEntity = entityCode
			gotPeriod = period
			return dashboard.Overview{Entity: entityCode, Period: period.String()}, nil
		},
	}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/overview?entity=shops", nil)
	rr := httptest.NewRecorder()
	handler.HandleOverviewForTest(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotEntity != "shops" {
		t.Fatalf("expected entity shops, got %q", gotEntity)
	}
	if gotPeriod.String() != "2026-08" {
		t.Fatalf("expected period 2026-08, got %s", gotPeriod)
	}
}

func TestOverviewRejectsBadPeriod(t *testing.T) {
	handler := newTestHandler(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/overview?period=augustus", nil)
	rr := httptest.NewRecorder()
	handler.HandleOverviewForTest(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected json problem response, got %q", ct)
	}
}

func TestOverviewNoSnapshot(t *testing.T) {
	svc := &stubService{
		overviewFn: func(context.Context, string, shared.Period) (dashboard.Overview, error) {
			return dashboard.Overview{}, shared.ErrNoSnapshot
		},
	}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	rr := httptest.NewRecorder()
	handler.HandleOverviewForTest(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestInvoiceFilterParsing(t *testing.T) {
	var gotFilter dashboard.InvoiceFilter
	svc := &stubService{
		invoicesFn: func(ctx context.Context, entityCode string, filter dashboard.InvoiceFilter) (dashboard.InvoiceView, error) {
			gotFilter = filter
			return dashboard.InvoiceView{}, nil
		},
	}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices?direction=sale&unpaid=1&partner=jansen", nil)
	rr := httptest.NewRecorder()
	handler.HandleInvoicesForTest(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotFilter.Direction != "sale" || !gotFilter.UnpaidOnly || gotFilter.Partner != "jansen" {
		t.Fatalf("unexpected filter %+v", gotFilter)
	}
}

func TestInvoiceCSVDownload(t *testing.T) {
	svc := &stubService{
		invoicesFn: func(ctx context.Context, entityCode string, filter dashboard.InvoiceFilter) (dashboard.InvoiceView, error) {
			return dashboard.InvoiceView{
				Entity: "shops",
				Invoices: []snapshot.Invoice{{
					Number:       "V2026-001",
					MoveType:     snapshot.MoveTypeSale,
					Partner:      "Jansen BV",
					AmountTotal:  1210,
					PaymentState: snapshot.PaymentStatePaid,
				}},
			}, nil
		},
	}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/export.csv?entity=shops", nil)
	rr := httptest.NewRecorder()
	handler.HandleInvoiceCSVForTest(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "facturen-shops.csv") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !strings.Contains(rr.Body.String(), "V2026-001") {
		t.Fatal("expected invoice number in csv body")
	}
}

func TestBalanceViewResponse(t *testing.T) {
	svc := &stubService{
		balanceFn: func(ctx context.Context, entityCode string) (dashboard.BalanceView, error) {
			return dashboard.BalanceView{
				Entity:      entityCode,
				TotalAssets: 75000,
				InBalance:   true,
			}, nil
		},
	}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/balance?entity=shops", nil)
	rr := httptest.NewRecorder()
	handler.HandleBalanceForTest(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var view dashboard.BalanceView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !view.InBalance || view.TotalAssets != 75000 {
		t.Fatalf("unexpected view %+v", view)
	}
}
