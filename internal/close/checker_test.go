package close

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-group/labdash/internal/shared"
	"github.com/lab-group/labdash/internal/snapshot"
)

var testAsOf = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func testChecker() *Checker {
	return NewChecker().WithNow(func() time.Time { return testAsOf })
}

func testPeriod(t *testing.T) shared.Period {
	t.Helper()
	period, err := shared.ParsePeriod("2026-07")
	require.NoError(t, err)
	return period
}

func findCheck(t *testing.T, results []CheckResult, code string) CheckResult {
	t.Helper()
	for _, result := range results {
		if result.Code == code {
			return result
		}
	}
	t.Fatalf("check %s not in results", code)
	return CheckResult{}
}

func TestBalanceCheckPasses(t *testing.T) {
	result := testChecker().checkBalance(snapshot.PeriodFigures{
		DebitTotal:  150000.004,
		CreditTotal: 150000.00,
	})
	assert.Equal(t, SeverityOK, result.Severity)
	assert.False(t, result.Flagged())
}

func TestBalanceCheckReportsDiscrepancy(t *testing.T) {
	result := testChecker().checkBalance(snapshot.PeriodFigures{
		DebitTotal:  150000.00,
		CreditTotal: 149876.55,
	})
	require.Equal(t, SeverityCritical, result.Severity)
	require.Len(t, result.Items, 1)
	assert.InDelta(t, 123.45, result.Items[0].Amount, 0.001)
	assert.Contains(t, result.Summary, "123.45")
}

func TestAgingThreshold(t *testing.T) {
	day := 24 * time.Hour
	items := []snapshot.OpenItem{
		{Label: "F089", Partner: "Jansen", Date: testAsOf.Add(-89 * day), AmountResidual: 800},
		{Label: "F090", Partner: "Pietersen", Date: testAsOf.Add(-90 * day), AmountResidual: 900},
		{Label: "F091", Partner: "De Vries", Date: testAsOf.Add(-91 * day), AmountResidual: 1200},
		{Label: "F200", Partner: "Bakker", Date: testAsOf.Add(-200 * day), AmountResidual: 300},
	}

	result := testChecker().checkAgedItems(items, testAsOf, true)
	require.Equal(t, SeverityCritical, result.Severity)
	require.Len(t, result.Items, 2)
	// Oldest first; 89 and 90 days stay out.
	assert.Equal(t, "F200", result.Items[0].Reference)
	assert.Equal(t, "F091", result.Items[1].Reference)
	assert.Equal(t, 91, result.Items[1].Days)
}

func TestAgedPayablesAreWarning(t *testing.T) {
	items := []snapshot.OpenItem{
		{Label: "INK-1", Date: testAsOf.Add(-120 * 24 * time.Hour), AmountResidual: -450},
	}
	result := testChecker().checkAgedItems(items, testAsOf, false)
	assert.Equal(t, SeverityWarning, result.Severity)
}

func TestUnpostedEntriesBlock(t *testing.T) {
	period := testPeriod(t)
	entries := []snapshot.JournalEntry{
		{Name: "MISC/2026/07/0001", Date: time.Date(2026, 7, 12, 0, 0, 0, 0, time.UTC), Amount: 250},
		{Name: "MISC/2026/08/0002", Date: time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), Amount: 99},
	}
	result := testChecker().checkUnposted(entries, period)
	require.Equal(t, SeverityCritical, result.Severity)
	// The August draft falls outside the July close.
	require.Len(t, result.Items, 1)
	assert.Equal(t, "MISC/2026/07/0001", result.Items[0].Reference)
}

func TestUnpaidInvoicesSplitByDirection(t *testing.T) {
	period := testPeriod(t)
	invoices := []snapshot.Invoice{
		{Number: "V2026-051", MoveType: snapshot.MoveTypeSale, PaymentState: snapshot.PaymentStateNotPaid,
			IssueDate: time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC), AmountResidual: 1210},
		{Number: "V2026-052", MoveType: snapshot.MoveTypeSale, PaymentState: snapshot.PaymentStatePaid,
			IssueDate: time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)},
		{Number: "I2026-033", MoveType: snapshot.MoveTypePurchase, PaymentState: snapshot.PaymentStatePartial,
			IssueDate: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC), AmountResidual: 480},
	}

	sales := testChecker().checkUnpaidInvoices(invoices, period, snapshot.MoveTypeSale)
	require.Equal(t, SeverityWarning, sales.Severity)
	require.Len(t, sales.Items, 1)
	assert.Equal(t, "V2026-051", sales.Items[0].Reference)

	purchases := testChecker().checkUnpaidInvoices(invoices, period, snapshot.MoveTypePurchase)
	require.Len(t, purchases.Items, 1)
	assert.Equal(t, "I2026-033", purchases.Items[0].Reference)
}

func TestCostComponentsMissing(t *testing.T) {
	figures := snapshot.PeriodFigures{
		CostsByGroup: map[string]float64{"40": 18000, "46": 45, "43": 900},
	}
	result := testChecker().checkCostComponents(figures)
	require.Equal(t, SeverityWarning, result.Severity)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "46", result.Items[0].Reference)
	assert.Equal(t, "48", result.Items[1].Reference)
}

func TestCostComponentsComplete(t *testing.T) {
	figures := snapshot.PeriodFigures{
		CostsByGroup: map[string]float64{"40": 18000, "46": 3200, "48": 1100},
	}
	result := testChecker().checkCostComponents(figures)
	assert.False(t, result.Flagged())
}

func TestCostVarianceNeedsBothThresholds(t *testing.T) {
	current := snapshot.PeriodFigures{CostsByGroup: map[string]float64{
		"40": 27000, // +35% and +7000: flagged
		"41": 1400,  // +40% but only +400: below absolute limit
		"43": 9100,  // +600 but only +7%: below relative limit
	}}
	previous := snapshot.PeriodFigures{CostsByGroup: map[string]float64{
		"40": 20000,
		"41": 1000,
		"43": 8500,
	}}
	result := testChecker().checkCostVariance(current, previous)
	require.Equal(t, SeverityWarning, result.Severity)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "40", result.Items[0].Reference)
	assert.InDelta(t, 7000, result.Items[0].Amount, 0.001)
}

func TestCostVarianceIgnoresNonRecurringGroups(t *testing.T) {
	current := snapshot.PeriodFigures{CostsByGroup: map[string]float64{"70": 50000}}
	previous := snapshot.PeriodFigures{CostsByGroup: map[string]float64{"70": 10000}}
	result := testChecker().checkCostVariance(current, previous)
	assert.False(t, result.Flagged())
}

func TestCategoryMarginShift(t *testing.T) {
	current := snapshot.PeriodFigures{Categories: map[string]snapshot.CategoryFigures{
		"Verf":      {Revenue: 10000, COGS: 7500}, // 25% margin, was 40%: flagged
		"Behang":    {Revenue: 5000, COGS: 3000},  // 40% margin, was 42%: stable
		"Kwasten":   {Revenue: 400, COGS: 390},    // below revenue floor
		"Gordijnen": {Revenue: 2000, COGS: 500},   // no previous data
	}}
	previous := snapshot.PeriodFigures{Categories: map[string]snapshot.CategoryFigures{
		"Verf":   {Revenue: 9000, COGS: 5400},
		"Behang": {Revenue: 4800, COGS: 2784},
	}}
	result := testChecker().checkCategoryMargins(current, previous)
	require.Equal(t, SeverityWarning, result.Severity)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Verf", result.Items[0].Reference)
}

func TestRunOrderIsStable(t *testing.T) {
	data := &snapshot.EntityData{Periods: map[string]snapshot.PeriodFigures{}}
	results := testChecker().Run(data, testPeriod(t))
	codes := make([]string, len(results))
	for i, result := range results {
		codes[i] = result.Code
	}
	assert.Equal(t, []string{
		CheckBalance, CheckUnposted, CheckUnpaidSales, CheckUnpaidPurchase,
		CheckAgedReceivables, CheckAgedPayables, CheckCostComponents,
		CheckCostVariance, CheckCategoryMargins,
	}, codes)
}
