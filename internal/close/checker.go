package close

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lab-group/labdash/internal/shared"
	"github.com/lab-group/labdash/internal/snapshot"
)

// Severity grades a check outcome.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Check codes, in the order the review presents them.
const (
	CheckBalance         = "balance"
	CheckUnposted        = "unposted"
	CheckUnpaidSales     = "unpaid_sales"
	CheckUnpaidPurchase  = "unpaid_purchase"
	CheckAgedReceivables = "aged_receivables"
	CheckAgedPayables    = "aged_payables"
	CheckCostComponents  = "cost_components"
	CheckCostVariance    = "cost_variance"
	CheckCategoryMargins = "category_margins"
)

// Tolerances for the individual checks.
const (
	balanceTolerance  = 0.01
	agingDayThreshold = 90
	componentMinimum  = 100.0
	variancePctLimit  = 30.0
	varianceAbsLimit  = 500.0
	marginShiftLimit  = 10.0
	marginMinRevenue  = 1000.0
)

// Item is one flagged row inside a check result.
type Item struct {
	Reference string  `json:"reference"`
	Partner   string  `json:"partner,omitempty"`
	Date      string  `json:"date,omitempty"`
	Days      int     `json:"days,omitempty"`
	Amount    float64 `json:"amount"`
	Note      string  `json:"note,omitempty"`
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Summary  string   `json:"summary"`
	Items    []Item   `json:"items,omitempty"`
}

// Flagged reports whether the check found anything that needs attention.
func (r CheckResult) Flagged() bool {
	return r.Severity != SeverityOK
}

// Checker runs the month-end readiness checks over a snapshot. All checks
// are pure functions of the snapshot data and the reference date.
type Checker struct {
	now func() time.Time
}

func NewChecker() *Checker {
	return &Checker{now: time.Now}
}

// WithNow overrides the reference clock, for tests.
func (c *Checker) WithNow(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Run executes every readiness check for one entity scope and period.
// Results always come back in the same order.
func (c *Checker) Run(data *snapshot.EntityData, period shared.Period) []CheckResult {
	figures := data.Periods[period.String()]
	previous := data.Periods[period.Previous().String()]
	asOf := c.now()

	return []CheckResult{
		c.checkBalance(figures),
		c.checkUnposted(data.UnpostedEntries, period),
		c.checkUnpaidInvoices(data.Invoices, period, snapshot.MoveTypeSale),
		c.checkUnpaidInvoices(data.Invoices, period, snapshot.MoveTypePurchase),
		c.checkAgedItems(data.Receivables, asOf, true),
		c.checkAgedItems(data.Payables, asOf, false),
		c.checkCostComponents(figures),
		c.checkCostVariance(figures, previous),
		c.checkCategoryMargins(figures, previous),
	}
}

// checkBalance verifies debits equal credits on the trial balance. Amounts
// are compared in exact decimals; floating point noise below a cent never
// blocks a close.
func (c *Checker) checkBalance(figures snapshot.PeriodFigures) CheckResult {
	result := CheckResult{Code: CheckBalance, Name: "Balanscontrole", Severity: SeverityOK}
	debit := decimal.NewFromFloat(figures.DebitTotal)
	credit := decimal.NewFromFloat(figures.CreditTotal)
	diff := debit.Sub(credit).Abs().Round(2)
	if diff.LessThan(decimal.NewFromFloat(balanceTolerance)) {
		result.Summary = "Debet en credit zijn in evenwicht."
		return result
	}
	amount, _ := diff.Float64()
	result.Severity = SeverityCritical
	result.Summary = fmt.Sprintf("Balansverschil van €%.2f tussen debet en credit.", amount)
	result.Items = []Item{{
		Reference: "Proefbalans",
		Amount:    amount,
		Note:      fmt.Sprintf("debet €%.2f, credit €%.2f", figures.DebitTotal, figures.CreditTotal),
	}}
	return result
}

// checkUnposted flags draft journal entries dated in or before the period.
func (c *Checker) checkUnposted(entries []snapshot.JournalEntry, period shared.Period) CheckResult {
	result := CheckResult{Code: CheckUnposted, Name: "Conceptboekingen", Severity: SeverityOK}
	end := period.End()
	for _, entry := range entries {
		if !entry.Date.IsZero() && entry.Date.After(end) {
			continue
		}
		result.Items = append(result.Items, Item{
			Reference: entry.Name,
			Partner:   entry.Partner,
			Date:      formatDate(entry.Date),
			Amount:    entry.Amount,
			Note:      entry.MoveType,
		})
	}
	if len(result.Items) == 0 {
		result.Summary = "Geen conceptboekingen in deze periode."
		return result
	}
	result.Severity = SeverityCritical
	result.Summary = fmt.Sprintf("%d conceptboeking(en) moeten geboekt of verwijderd worden.", len(result.Items))
	return result
}

// checkUnpaidInvoices lists open invoices of one direction up to period end.
func (c *Checker) checkUnpaidInvoices(invoices []snapshot.Invoice, period shared.Period, moveType string) CheckResult {
	result := CheckResult{Severity: SeverityOK}
	if moveType == snapshot.MoveTypeSale {
		result.Code = CheckUnpaidSales
		result.Name = "Openstaande verkoopfacturen"
	} else {
		result.Code = CheckUnpaidPurchase
		result.Name = "Openstaande inkoopfacturen"
	}
	end := period.End()
	var total float64
	for _, invoice := range invoices {
		if invoice.MoveType != moveType || !invoice.Unpaid() {
			continue
		}
		if !invoice.IssueDate.IsZero() && invoice.IssueDate.After(end) {
			continue
		}
		total += invoice.AmountResidual
		result.Items = append(result.Items, Item{
			Reference: invoice.Number,
			Partner:   invoice.Partner,
			Date:      formatDate(invoice.IssueDate),
			Amount:    invoice.AmountResidual,
			Note:      invoice.PaymentState,
		})
	}
	if len(result.Items) == 0 {
		result.Summary = "Geen openstaande facturen."
		return result
	}
	result.Severity = SeverityWarning
	result.Summary = fmt.Sprintf("%d factu(u)r(en) open, totaal €%.2f.", len(result.Items), total)
	return result
}

// checkAgedItems flags open items outstanding for more than 90 days. An
// item at exactly 90 days is not yet flagged.
func (c *Checker) checkAgedItems(items []snapshot.OpenItem, asOf time.Time, receivable bool) CheckResult {
	result := CheckResult{Severity: SeverityOK}
	if receivable {
		result.Code = CheckAgedReceivables
		result.Name = "Oude debiteuren"
	} else {
		result.Code = CheckAgedPayables
		result.Name = "Oude crediteuren"
	}
	var total float64
	for _, item := range items {
		days := item.DaysOutstanding(asOf)
		if days <= agingDayThreshold {
			continue
		}
		total += math.Abs(item.AmountResidual)
		result.Items = append(result.Items, Item{
			Reference: item.Label,
			Partner:   item.Partner,
			Date:      formatDate(item.Date),
			Days:      days,
			Amount:    item.AmountResidual,
		})
	}
	if len(result.Items) == 0 {
		result.Summary = fmt.Sprintf("Geen posten ouder dan %d dagen.", agingDayThreshold)
		return result
	}
	sort.Slice(result.Items, func(i, j int) bool { return result.Items[i].Days > result.Items[j].Days })
	if receivable {
		result.Severity = SeverityCritical
	} else {
		result.Severity = SeverityWarning
	}
	result.Summary = fmt.Sprintf("%d post(en) ouder dan %d dagen, totaal €%.2f.",
		len(result.Items), agingDayThreshold, total)
	return result
}

// checkCostComponents verifies the recurring cost groups are present.
// Missing personnel (40), operating costs (46) or depreciation (48)
// usually means a booking run has not happened yet.
func (c *Checker) checkCostComponents(figures snapshot.PeriodFigures) CheckResult {
	result := CheckResult{Code: CheckCostComponents, Name: "Kostencomponenten", Severity: SeverityOK}
	expected := []struct {
		group string
		label string
	}{
		{"40", "Personeelskosten"},
		{"46", "Overige bedrijfskosten"},
		{"48", "Afschrijvingen"},
	}
	for _, component := range expected {
		amount := figures.CostsByGroup[component.group]
		if amount >= componentMinimum {
			continue
		}
		result.Items = append(result.Items, Item{
			Reference: component.group,
			Amount:    amount,
			Note:      fmt.Sprintf("%s onder €%.0f", component.label, componentMinimum),
		})
	}
	if len(result.Items) == 0 {
		result.Summary = "Alle vaste kostencomponenten zijn geboekt."
		return result
	}
	result.Severity = SeverityWarning
	result.Summary = fmt.Sprintf("%d kostencomponent(en) ontbreken of zijn onvolledig.", len(result.Items))
	return result
}

// checkCostVariance compares cost groups 40 through 47 with the previous
// month. A swing is flagged only when it is both large relative (>30%) and
// large absolute (>€500), so small bases do not spam the review.
func (c *Checker) checkCostVariance(current, previous snapshot.PeriodFigures) CheckResult {
	result := CheckResult{Code: CheckCostVariance, Name: "Kostenafwijkingen", Severity: SeverityOK}
	if len(previous.CostsByGroup) == 0 {
		result.Summary = "Geen vergelijkingsmaand beschikbaar."
		return result
	}
	groups := make([]string, 0, len(current.CostsByGroup))
	seen := map[string]bool{}
	for group := range current.CostsByGroup {
		seen[group] = true
		groups = append(groups, group)
	}
	for group := range previous.CostsByGroup {
		if !seen[group] {
			groups = append(groups, group)
		}
	}
	sort.Strings(groups)
	for _, group := range groups {
		if group < "40" || group > "47" {
			continue
		}
		cur := current.CostsByGroup[group]
		prev := previous.CostsByGroup[group]
		delta := cur - prev
		if math.Abs(delta) <= varianceAbsLimit {
			continue
		}
		var pct float64
		if prev != 0 {
			pct = delta / math.Abs(prev) * 100
		} else {
			pct = 100
		}
		if math.Abs(pct) <= variancePctLimit {
			continue
		}
		result.Items = append(result.Items, Item{
			Reference: group,
			Amount:    delta,
			Note:      fmt.Sprintf("%+.0f%% ten opzichte van vorige maand (€%.2f naar €%.2f)", pct, prev, cur),
		})
	}
	if len(result.Items) == 0 {
		result.Summary = "Geen opvallende kostenafwijkingen."
		return result
	}
	result.Severity = SeverityWarning
	result.Summary = fmt.Sprintf("%d kostengroep(en) wijken sterk af van vorige maand.", len(result.Items))
	return result
}

// checkCategoryMargins watches for gross-margin shifts per product
// category of more than 10 percentage points, for categories with at least
// €1000 revenue this month.
func (c *Checker) checkCategoryMargins(current, previous snapshot.PeriodFigures) CheckResult {
	result := CheckResult{Code: CheckCategoryMargins, Name: "Categoriemarges", Severity: SeverityOK}
	if len(previous.Categories) == 0 {
		result.Summary = "Geen vergelijkingsmaand beschikbaar."
		return result
	}
	categories := make([]string, 0, len(current.Categories))
	for category := range current.Categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		cur := current.Categories[category]
		if cur.Revenue < marginMinRevenue {
			continue
		}
		prev, ok := previous.Categories[category]
		if !ok || prev.Revenue <= 0 {
			continue
		}
		shift := cur.MarginPct() - prev.MarginPct()
		if math.Abs(shift) <= marginShiftLimit {
			continue
		}
		result.Items = append(result.Items, Item{
			Reference: category,
			Amount:    cur.Revenue,
			Note: fmt.Sprintf("marge %+.1fpt (%.1f%% naar %.1f%%)",
				shift, prev.MarginPct(), cur.MarginPct()),
		})
	}
	if len(result.Items) == 0 {
		result.Summary = "Marges per categorie zijn stabiel."
		return result
	}
	result.Severity = SeverityWarning
	result.Summary = fmt.Sprintf("%d categorie(ën) met een verschoven marge.", len(result.Items))
	return result
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
