package close

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

func cleanEntity() *snapshot.EntityData {
	periods := map[string]snapshot.PeriodFigures{}
	base := snapshot.PeriodFigures{
		Revenue:      20000,
		Costs:        15000,
		DebitTotal:   80000,
		CreditTotal:  80000,
		CostsByGroup: map[string]float64{"40": 9000, "46": 2500, "48": 800},
	}
	for i := 0; i < 8; i++ {
		p := shared.Period{Year: 2026, Month: time.Month(1 + i)}
		periods[p.String()] = base
	}
	return &snapshot.EntityData{ID: 2, Name: "LAB Shops", Periods: periods}
}

func reportSnapshot(data *snapshot.EntityData) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		GeneratedAt: time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC),
		Source:      "test",
		Entities:    map[string]*snapshot.EntityData{"shops": data},
	}
}

func buildTestReport(t *testing.T, data *snapshot.EntityData) *Report {
	t.Helper()
	reporter := NewReporter(&stubSource{snap: reportSnapshot(data)}, testChecker()).
		WithNow(func() time.Time { return testAsOf })
	report, err := reporter.Build(context.Background(), "shops", testPeriod(t), true)
	require.NoError(t, err)
	return report
}

func TestReportCleanBooksAreReady(t *testing.T) {
	report := buildTestReport(t, cleanEntity())
	assert.Equal(t, VerdictReady, report.Verdict)
	assert.Empty(t, report.FlaggedChecks())
	assert.Equal(t, "LAB Shops", report.EntityName)
	assert.Equal(t, "Juli 2026", report.PeriodLabel)
	assert.InDelta(t, 5000, report.Figures.Result, 0.001)

	require.NotNil(t, report.Comparison)
	assert.Equal(t, "2026-06", report.Comparison.PreviousPeriod)
	assert.Zero(t, report.Comparison.RevenueDelta)

	require.Len(t, report.Trend.Points, 6)
	assert.Equal(t, "2026-02", report.Trend.Points[0].Period)
	assert.Equal(t, "2026-07", report.Trend.Points[5].Period)
	assert.InDelta(t, 20000, report.Trend.AvgRevenue, 0.001)
}

func TestReportBlockedByBalanceDiscrepancy(t *testing.T) {
	data := cleanEntity()
	figures := data.Periods["2026-07"]
	figures.CreditTotal -= 75.50
	data.Periods["2026-07"] = figures

	report := buildTestReport(t, data)
	assert.Equal(t, VerdictBlocked, report.Verdict)
	balance := findCheck(t, report.Checks, CheckBalance)
	assert.Equal(t, SeverityCritical, balance.Severity)
}

func TestReportWarningsOnly(t *testing.T) {
	data := cleanEntity()
	data.Invoices = []snapshot.Invoice{{
		Number:         "V2026-010",
		MoveType:       snapshot.MoveTypeSale,
		PaymentState:   snapshot.PaymentStateNotPaid,
		IssueDate:      time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC),
		AmountResidual: 750,
	}}

	report := buildTestReport(t, data)
	assert.Equal(t, VerdictWithWarnings, report.Verdict)
}

func TestReportAttentionCapped(t *testing.T) {
	data := cleanEntity()
	for i := 0; i < 8; i++ {
		data.Receivables = append(data.Receivables, snapshot.OpenItem{
			Label:          "F" + string(rune('A'+i)),
			Date:           testAsOf.Add(-time.Duration(100+i) * 24 * time.Hour),
			AmountResidual: float64(100 * (i + 1)),
		})
	}

	report := buildTestReport(t, data)
	require.Len(t, report.Attention.OverdueReceivables, 5)
	// Heaviest amounts first.
	assert.InDelta(t, 800, report.Attention.OverdueReceivables[0].Amount, 0.001)
}

func TestReportAttentionSignals(t *testing.T) {
	data := cleanEntity()
	figures := data.Periods["2026-07"]
	figures.Revenue = 10000
	data.Periods["2026-07"] = figures

	report := buildTestReport(t, data)
	require.Len(t, report.Attention.Signals, 2)
	assert.Contains(t, report.Attention.Signals[0], "Negatief resultaat")
	assert.Contains(t, report.Attention.Signals[1], "Omzet -50%")

	assert.Empty(t, buildTestReport(t, cleanEntity()).Attention.Signals)
}

func TestReportNoSnapshot(t *testing.T) {
	reporter := NewReporter(&stubSource{err: shared.ErrNoSnapshot}, testChecker())
	_, err := reporter.Build(context.Background(), "", testPeriod(t), true)
	require.ErrorIs(t, err, shared.ErrNoSnapshot)
}

func TestReportUnknownEntity(t *testing.T) {
	reporter := NewReporter(&stubSource{snap: reportSnapshot(cleanEntity())}, testChecker())
	_, err := reporter.Build(context.Background(), "nonexistent", testPeriod(t), true)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
