package close

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lab-group/labdash/internal/shared"
	"github.com/lab-group/labdash/internal/snapshot"
)

// Deviation thresholds for the VAT position comparison.
const (
	vatDeviationPctLimit = 25.0
	vatDeviationAbsLimit = 500.0
)

// VATAccount aggregates one BTW account over a filing window.
type VATAccount struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Debit  float64 `json:"debit"`
	Credit float64 `json:"credit"`
}

// Balance is the account's net position; positive means VAT payable.
func (a VATAccount) Balance() float64 {
	return a.Credit - a.Debit
}

// VATDeviation compares the current filing window with the previous one.
type VATDeviation struct {
	PreviousLabel  string  `json:"previous_label"`
	PreviousAmount float64 `json:"previous_amount"`
	Delta          float64 `json:"delta"`
	Pct            float64 `json:"pct"`
	Flagged        bool    `json:"flagged"`
}

// VATSummary is the filing position for one window.
type VATSummary struct {
	Label      string        `json:"label"`
	Monthly    bool          `json:"monthly"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	OutputVAT  float64       `json:"output_vat"`
	InputVAT   float64       `json:"input_vat"`
	NetPayable float64       `json:"net_payable"`
	Accounts   []VATAccount  `json:"accounts,omitempty"`
	Deviation  *VATDeviation `json:"deviation,omitempty"`
}

// BuildVATSummary aggregates the BTW accounts across the filing window for
// the given period (monthly or quarterly) and compares the net position
// with the previous window.
func BuildVATSummary(data *snapshot.EntityData, period shared.Period, monthly bool) VATSummary {
	window := shared.VATWindowFor(period, monthly)
	summary := windowSummary(data, window)

	prevWindow := window.Previous()
	prev := windowSummary(data, prevWindow)
	if prev.OutputVAT == 0 && prev.InputVAT == 0 {
		return summary
	}

	delta := summary.NetPayable - prev.NetPayable
	var pct float64
	if prev.NetPayable != 0 {
		pct = delta / math.Abs(prev.NetPayable) * 100
	} else {
		pct = 100
	}
	summary.Deviation = &VATDeviation{
		PreviousLabel:  prevWindow.Label,
		PreviousAmount: prev.NetPayable,
		Delta:          delta,
		Pct:            pct,
		Flagged:        math.Abs(pct) > vatDeviationPctLimit && math.Abs(delta) > vatDeviationAbsLimit,
	}
	return summary
}

func windowSummary(data *snapshot.EntityData, window shared.VATWindow) VATSummary {
	summary := VATSummary{
		Label:   window.Label,
		Monthly: window.Monthly,
		From:    window.From.Start().Format("2006-01-02"),
		To:      window.To.End().Format("2006-01-02"),
	}
	accounts := map[string]*VATAccount{}
	for _, period := range window.Periods() {
		figures := data.Periods[period.String()]
		for _, line := range figures.VAT {
			key := line.AccountCode + " " + line.AccountName
			account, ok := accounts[key]
			if !ok {
				account = &VATAccount{Code: line.AccountCode, Name: line.AccountName}
				accounts[key] = account
			}
			account.Debit += line.Debit
			account.Credit += line.Credit
		}
	}

	keys := make([]string, 0, len(accounts))
	for key := range accounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		account := accounts[key]
		summary.Accounts = append(summary.Accounts, *account)
		if outputAccount(*account) {
			summary.OutputVAT += account.Balance()
		} else {
			summary.InputVAT += account.Debit - account.Credit
		}
	}
	summary.NetPayable = summary.OutputVAT - summary.InputVAT
	return summary
}

// outputAccount classifies a BTW account as output (af te dragen) or input
// (voorbelasting). Input VAT lives on the voorbelasting accounts, which
// carry the word in their name.
func outputAccount(account VATAccount) bool {
	name := strings.ToLower(account.Name)
	if strings.Contains(name, "voorbelasting") || strings.Contains(name, "te vorderen") {
		return false
	}
	return true
}

// VATCheck turns a flagged deviation into a review item so exports carry it
// alongside the other checks.
func VATCheck(summary VATSummary) CheckResult {
	result := CheckResult{Code: "vat_deviation", Name: "BTW-afwijking", Severity: SeverityOK}
	if summary.Deviation == nil || !summary.Deviation.Flagged {
		result.Summary = "BTW-positie in lijn met de vorige aangifteperiode."
		return result
	}
	result.Severity = SeverityWarning
	result.Summary = fmt.Sprintf("BTW-positie wijkt %+.0f%% af van %s.",
		summary.Deviation.Pct, summary.Deviation.PreviousLabel)
	result.Items = []Item{{
		Reference: summary.Label,
		Amount:    summary.Deviation.Delta,
		Note: fmt.Sprintf("van €%.2f naar €%.2f",
			summary.Deviation.PreviousAmount, summary.NetPayable),
	}}
	return result
}
