package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-group/labdash/internal/shared"
	"github.com/lab-group/labdash/internal/snapshot"
)

type stubSource struct {
	snap *snapshot.Snapshot
	err  error
}

func (s *stubSource) Current(context.Context) (*snapshot.Snapshot, error) {
	return s.snap, s.err
}

func demoSnapshot() *snapshot.Snapshot {
	shops := &snapshot.EntityData{
		ID:   2,
		Name: "LAB Shops",
		Periods: map[string]snapshot.PeriodFigures{
			"2026-07": {Revenue: 42000, Costs: 30000, CashIn: 39000, CashOut: 28000,
				CostsByGroup: map[string]float64{"40": 18000, "46": 7000, "70": 5000}},
			"2026-06": {Revenue: 40000, Costs: 29000, CashIn: 38000, CashOut: 30000,
				CostsByGroup: map[string]float64{"40": 18000, "43": 1500, "46": 6800, "70": 2700}},
			"2025-07": {Revenue: 35000, Costs: 27000},
			"2026-01": {Revenue: 38000, Costs: 28000},
		},
		BankAccounts: []snapshot.BankAccount{
			{Journal: "Rabobank", Code: "BNK1", AccountCode: "1010", Balance: 52000},
			{Journal: "R/C LAB Holding", AccountCode: "1210", Balance: -8000},
		},
		Invoices: []snapshot.Invoice{
			{Number: "V2026-001", MoveType: snapshot.MoveTypeSale, Partner: "Jansen BV",
				IssueDate:    time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC),
				AmountTotal:  1210, AmountResidual: 1210, PaymentState: snapshot.PaymentStateNotPaid},
			{Number: "V2026-002", MoveType: snapshot.MoveTypeSale, Partner: "De Vries",
				IssueDate:   time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
				AmountTotal: 890, PaymentState: snapshot.PaymentStatePaid},
			{Number: "I2026-014", MoveType: snapshot.MoveTypePurchase, Partner: "Sigma Coatings",
				IssueDate:    time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC),
				AmountTotal:  3400, AmountResidual: 1700, PaymentState: snapshot.PaymentStatePartial},
		},
		Products: []snapshot.ProductSales{
			{Product: "Muurverf wit 10L", Category: "Verf", Quantity: 120, Revenue: 5400},
			{Product: "Behang klassiek", Category: "Behang", Quantity: 40, Revenue: 7800},
		},
		Customers: []snapshot.CustomerLocation{
			{Name: "Jansen BV", City: "Utrecht", Lat: 52.09, Lon: 5.12, Revenue: 9000},
		},
		Accounts: []snapshot.AccountBalance{
			{Code: "0210", Name: "Verbouwing", Balance: 15000},
			{Code: "1010", Name: "Rabobank", Balance: 52000},
			{Code: "1300", Name: "Debiteuren", Balance: 8000},
			{Code: "2000", Name: "Eigen vermogen", Balance: -60000},
			{Code: "2400", Name: "Crediteuren", Balance: -15000},
		},
	}
	holding := &snapshot.EntityData{
		ID:   4,
		Name: "LAB Holding",
		Periods: map[string]snapshot.PeriodFigures{
			"2026-07": {Revenue: 8000, Costs: 6000},
		},
	}
	return &snapshot.Snapshot{
		GeneratedAt: time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC),
		Source:      "test",
		Entities:    map[string]*snapshot.EntityData{"shops": shops, "holding": holding},
	}
}

func demoService() *Service {
	return NewService(&stubSource{snap: demoSnapshot()})
}

func july(t *testing.T) shared.Period {
	t.Helper()
	period, err := shared.ParsePeriod("2026-07")
	require.NoError(t, err)
	return period
}

func TestEntitiesListsRegistryOrder(t *testing.T) {
	list, err := demoService().Entities(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Entities, 3)
	assert.Equal(t, "Alle bedrijven", list.Entities[0].Name)
	assert.Equal(t, "shops", list.Entities[1].Code)
	assert.Equal(t, "holding", list.Entities[2].Code)
	assert.False(t, list.SnapshotAt.IsZero())
}

func TestOverviewSingleEntity(t *testing.T) {
	view, err := demoService().Overview(context.Background(), "shops", july(t))
	require.NoError(t, err)

	assert.InDelta(t, 42000, view.Revenue, 0.001)
	assert.InDelta(t, 12000, view.Result, 0.001)
	assert.InDelta(t, 28.57, view.MarginPct, 0.01)

	require.NotNil(t, view.VsPrevious)
	assert.InDelta(t, 2000, view.VsPrevious.Amount, 0.001)
	assert.InDelta(t, 5, view.VsPrevious.Pct, 0.001)

	require.NotNil(t, view.VsLastYear)
	assert.Equal(t, "2025-07", view.VsLastYear.Period)
	assert.InDelta(t, 7000, view.VsLastYear.Amount, 0.001)

	// January, June and July are the booked months this year.
	assert.InDelta(t, 120000, view.YearToDate.Revenue, 0.001)

	require.Len(t, view.Trend, 6)
	assert.Equal(t, "2026-07", view.Trend[5].Period)
	assert.Empty(t, view.ByEntity)
}

func TestOverviewCombined(t *testing.T) {
	view, err := demoService().Overview(context.Background(), "", july(t))
	require.NoError(t, err)
	assert.Equal(t, "Alle bedrijven", view.EntityName)
	assert.InDelta(t, 50000, view.Revenue, 0.001)
	require.Len(t, view.ByEntity, 2)
	assert.Equal(t, "shops", view.ByEntity[0].Code)
	assert.Equal(t, "holding", view.ByEntity[1].Code)
}

func TestBankSplitsIntercompany(t *testing.T) {
	view, err := demoService().Bank(context.Background(), "shops")
	require.NoError(t, err)
	require.Len(t, view.Accounts, 1)
	require.Len(t, view.Intercompany, 1)
	assert.InDelta(t, 52000, view.TotalBank, 0.001)
	assert.InDelta(t, -8000, view.TotalIntercompany, 0.001)
}

func TestInvoiceFilters(t *testing.T) {
	svc := demoService()

	all, err := svc.Invoices(context.Background(), "shops", InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count)
	// Newest first.
	assert.Equal(t, "V2026-002", all.Invoices[0].Number)
	assert.InDelta(t, 2910, all.TotalOpen, 0.001)

	unpaidSales, err := svc.Invoices(context.Background(), "shops", InvoiceFilter{Direction: "sale", UnpaidOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, unpaidSales.Count)
	assert.Equal(t, "V2026-001", unpaidSales.Invoices[0].Number)

	byPartner, err := svc.Invoices(context.Background(), "shops", InvoiceFilter{Partner: "sigma"})
	require.NoError(t, err)
	require.Equal(t, 1, byPartner.Count)
	assert.Equal(t, "I2026-014", byPartner.Invoices[0].Number)
}

func TestProductsRankedByRevenue(t *testing.T) {
	view, err := demoService().Products(context.Background(), "shops", 1)
	require.NoError(t, err)
	require.Len(t, view.Products, 1)
	assert.Equal(t, "Behang klassiek", view.Products[0].Product)
	assert.InDelta(t, 13200, view.TotalRevenue, 0.001)
}

func TestCashflowSeries(t *testing.T) {
	view, err := demoService().Cashflow(context.Background(), "shops", july(t), 2)
	require.NoError(t, err)
	require.Len(t, view.Months, 2)
	assert.Equal(t, "2026-06", view.Months[0].Period)
	assert.InDelta(t, 8000, view.Months[0].Net, 0.001)
	assert.InDelta(t, 11000, view.Months[1].Net, 0.001)
	assert.InDelta(t, 19000, view.NetSum, 0.001)
}

func TestCostBreakdown(t *testing.T) {
	view, err := demoService().Costs(context.Background(), "shops", july(t))
	require.NoError(t, err)
	require.Len(t, view.Rows, 4)

	// Sorted by group, including groups only booked last month.
	assert.Equal(t, "40", view.Rows[0].Group)
	assert.Equal(t, "Personeelskosten", view.Rows[0].Name)
	assert.InDelta(t, 18000, view.Rows[0].Amount, 0.001)
	assert.InDelta(t, 60, view.Rows[0].SharePct, 0.001)

	kantoor := view.Rows[1]
	assert.Equal(t, "43", kantoor.Group)
	assert.InDelta(t, 0, kantoor.Amount, 0.001)
	assert.InDelta(t, -1500, kantoor.Delta, 0.001)

	assert.InDelta(t, 30000, view.Total, 0.001)
	assert.InDelta(t, 29000, view.PreviousTotal, 0.001)
}

func TestBalanceQuadrant(t *testing.T) {
	view, err := demoService().Balance(context.Background(), "shops")
	require.NoError(t, err)
	assert.InDelta(t, 15000, view.FixedAssets.Total, 0.001)
	assert.InDelta(t, 60000, view.CurrentAssets.Total, 0.001)
	assert.InDelta(t, 75000, view.TotalLiabilities, 0.001)
	assert.True(t, view.InBalance)
	// Liability balances flip to the positive side.
	require.Len(t, view.EquityLiabilities.Accounts, 2)
	assert.InDelta(t, 60000, view.EquityLiabilities.Accounts[0].Balance, 0.001)
}

func TestServiceNoSnapshot(t *testing.T) {
	svc := NewService(&stubSource{err: shared.ErrNoSnapshot})
	_, err := svc.Overview(context.Background(), "", july(t))
	require.ErrorIs(t, err, shared.ErrNoSnapshot)
}

func TestServiceUnknownEntity(t *testing.T) {
	_, err := demoService().Bank(context.Background(), "nope")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
