package close

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lab-group/labdash/internal/shared"
	"github.com/lab-group/labdash/internal/snapshot"
)

// SnapshotSource provides the published snapshot the report is built from.
type SnapshotSource interface {
	Current(ctx context.Context) (*snapshot.Snapshot, error)
}

// Verdict is the overall close readiness.
type Verdict string

const (
	VerdictReady        Verdict = "ready"
	VerdictWithWarnings Verdict = "ready_with_warnings"
	VerdictBlocked      Verdict = "blocked"
)

// trendMonths is the length of the result trend, period inclusive.
const trendMonths = 6

// attentionLimit caps each attention list.
const attentionLimit = 5

// PeriodSummary carries the headline figures for the period under review.
type PeriodSummary struct {
	Revenue   float64 `json:"revenue"`
	Costs     float64 `json:"costs"`
	Result    float64 `json:"result"`
	MarginPct float64 `json:"margin_pct"`
}

// Comparison holds the deltas against the previous month.
type Comparison struct {
	PreviousPeriod string  `json:"previous_period"`
	RevenueDelta   float64 `json:"revenue_delta"`
	CostsDelta     float64 `json:"costs_delta"`
	ResultDelta    float64 `json:"result_delta"`
	RevenuePct     float64 `json:"revenue_pct"`
}

// TrendPoint is one month in the result trend.
type TrendPoint struct {
	Period  string  `json:"period"`
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
	Costs   float64 `json:"costs"`
	Result  float64 `json:"result"`
}

// Trend is the rolling six-month view with averages.
type Trend struct {
	Points     []TrendPoint `json:"points"`
	AvgRevenue float64      `json:"avg_revenue"`
	AvgCosts   float64      `json:"avg_costs"`
	AvgResult  float64      `json:"avg_result"`
}

// Attention surfaces the most pressing open items, capped per list.
type Attention struct {
	Signals            []string `json:"signals,omitempty"`
	OverdueReceivables []Item   `json:"overdue_receivables,omitempty"`
	UnpaidInvoices     []Item   `json:"unpaid_invoices,omitempty"`
	DraftEntries       []Item   `json:"draft_entries,omitempty"`
}

// Report is the complete close review for one entity scope and period.
type Report struct {
	Entity      string        `json:"entity"`
	EntityName  string        `json:"entity_name"`
	Period      string        `json:"period"`
	PeriodLabel string        `json:"period_label"`
	GeneratedAt time.Time     `json:"generated_at"`
	SnapshotAt  time.Time     `json:"snapshot_at"`
	Figures     PeriodSummary `json:"figures"`
	Comparison  *Comparison   `json:"comparison,omitempty"`
	Checks      []CheckResult `json:"checks"`
	VAT         VATSummary    `json:"vat"`
	Trend       Trend         `json:"trend"`
	Attention   Attention     `json:"attention"`
	Verdict     Verdict       `json:"verdict"`
}

// FlaggedChecks returns only the checks that need attention.
func (r *Report) FlaggedChecks() []CheckResult {
	flagged := make([]CheckResult, 0, len(r.Checks))
	for _, check := range r.Checks {
		if check.Flagged() {
			flagged = append(flagged, check)
		}
	}
	return flagged
}

// Reporter assembles close reports from the published snapshot.
type Reporter struct {
	source  SnapshotSource
	checker *Checker
	now     func() time.Time
}

func NewReporter(source SnapshotSource, checker *Checker) *Reporter {
	return &Reporter{source: source, checker: checker, now: time.Now}
}

// WithNow overrides the report clock, for tests.
func (r *Reporter) WithNow(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// Build runs all checks and assembles the report. An empty entity code
// reviews all business units combined.
func (r *Reporter) Build(ctx context.Context, entityCode string, period shared.Period, vatMonthly bool) (*Report, error) {
	snap, err := r.source.Current(ctx)
	if err != nil {
		return nil, err
	}
	data, err := snap.Scope(entityCode)
	if err != nil {
		return nil, err
	}

	figures := data.Periods[period.String()]
	report := &Report{
		Entity:      entityCode,
		EntityName:  data.Name,
		Period:      period.String(),
		PeriodLabel: period.Label(),
		GeneratedAt: r.now(),
		SnapshotAt:  snap.GeneratedAt,
		Figures: PeriodSummary{
			Revenue:   figures.Revenue,
			Costs:     figures.Costs,
			Result:    figures.Result(),
			MarginPct: figures.MarginPct(),
		},
	}

	if previous, ok := data.Periods[period.Previous().String()]; ok {
		comparison := &Comparison{
			PreviousPeriod: period.Previous().String(),
			RevenueDelta:   figures.Revenue - previous.Revenue,
			CostsDelta:     figures.Costs - previous.Costs,
			ResultDelta:    figures.Result() - previous.Result(),
		}
		if previous.Revenue != 0 {
			comparison.RevenuePct = comparison.RevenueDelta / math.Abs(previous.Revenue) * 100
		}
		report.Comparison = comparison
	}

	report.Checks = r.checker.Run(data, period)
	report.VAT = BuildVATSummary(data, period, vatMonthly)
	report.Checks = append(report.Checks, VATCheck(report.VAT))
	report.Trend = buildTrend(data, period)
	report.Attention = buildAttention(report.Checks)
	previous, hasPrevious := data.Periods[period.Previous().String()]
	report.Attention.Signals = attentionSignals(figures, previous, hasPrevious)
	report.Verdict = verdict(report.Checks)
	return report, nil
}

func buildTrend(data *snapshot.EntityData, period shared.Period) Trend {
	trend := Trend{Points: make([]TrendPoint, 0, trendMonths)}
	for i := trendMonths - 1; i >= 0; i-- {
		p := period.AddMonths(-i)
		figures := data.Periods[p.String()]
		trend.Points = append(trend.Points, TrendPoint{
			Period:  p.String(),
			Label:   p.ShortLabel(),
			Revenue: figures.Revenue,
			Costs:   figures.Costs,
			Result:  figures.Result(),
		})
		trend.AvgRevenue += figures.Revenue
		trend.AvgCosts += figures.Costs
		trend.AvgResult += figures.Result()
	}
	trend.AvgRevenue /= trendMonths
	trend.AvgCosts /= trendMonths
	trend.AvgResult /= trendMonths
	return trend
}

// buildAttention picks the heaviest open items out of the check results.
func buildAttention(checks []CheckResult) Attention {
	var attention Attention
	for _, check := range checks {
		switch check.Code {
		case CheckAgedReceivables:
			attention.OverdueReceivables = topItems(check.Items)
		case CheckUnpaidSales:
			attention.UnpaidInvoices = topItems(check.Items)
		case CheckUnposted:
			attention.DraftEntries = topItems(check.Items)
		}
	}
	return attention
}

// swingSignalPct marks month-over-month revenue or cost swings worth a note.
const swingSignalPct = 20.0

func attentionSignals(current, previous snapshot.PeriodFigures, hasPrevious bool) []string {
	var signals []string
	if current.Result() < 0 {
		signals = append(signals, fmt.Sprintf("Negatief resultaat van €%.2f", current.Result()))
	}
	if !hasPrevious {
		return signals
	}
	if previous.Revenue != 0 {
		pct := (current.Revenue - previous.Revenue) / math.Abs(previous.Revenue) * 100
		if math.Abs(pct) > swingSignalPct {
			signals = append(signals, fmt.Sprintf("Omzet %+.0f%% ten opzichte van vorige maand", pct))
		}
	}
	if previous.Costs != 0 {
		pct := (current.Costs - previous.Costs) / math.Abs(previous.Costs) * 100
		if math.Abs(pct) > swingSignalPct {
			signals = append(signals, fmt.Sprintf("Kosten %+.0f%% ten opzichte van vorige maand", pct))
		}
	}
	return signals
}

func topItems(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Amount) > math.Abs(sorted[j].Amount)
	})
	if len(sorted) > attentionLimit {
		sorted = sorted[:attentionLimit]
	}
	return sorted
}

func verdict(checks []CheckResult) Verdict {
	result := VerdictReady
	for _, check := range checks {
		switch check.Severity {
		case SeverityCritical:
			return VerdictBlocked
		case SeverityWarning:
			result = VerdictWithWarnings
		}
	}
	return result
}
