package close

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ExportJSON writes the full report as indented JSON.
func ExportJSON(w io.Writer, report *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// csvHeader is the column layout for the flagged-items export.
var csvHeader = []string{"controle", "ernst", "referentie", "relatie", "datum", "dagen", "bedrag", "toelichting"}

// ExportCSV writes every flagged item as one row. Checks that passed are
// omitted; a flagged check without item rows still gets a summary row so
// the file never silently drops a finding.
func ExportCSV(w io.Writer, report *Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, check := range report.FlaggedChecks() {
		if len(check.Items) == 0 {
			record := []string{check.Name, string(check.Severity), "", "", "", "", "", check.Summary}
			if err := writer.Write(record); err != nil {
				return err
			}
			continue
		}
		for _, item := range check.Items {
			days := ""
			if item.Days > 0 {
				days = strconv.Itoa(item.Days)
			}
			record := []string{
				check.Name,
				string(check.Severity),
				item.Reference,
				item.Partner,
				item.Date,
				days,
				strconv.FormatFloat(item.Amount, 'f', 2, 64),
				item.Note,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

var verdictLabels = map[Verdict]string{
	VerdictReady:        "GEREED VOOR AFSLUITING",
	VerdictWithWarnings: "GEREED MET AANDACHTSPUNTEN",
	VerdictBlocked:      "NOG NIET GEREED",
}

var severityMarkers = map[Severity]string{
	SeverityOK:       "[ OK ]",
	SeverityWarning:  "[LET OP]",
	SeverityCritical: "[BLOKKEREND]",
}

// ExportText writes the report as a plain-text memo with Dutch number
// formatting, suitable for pasting into an email to the accountant.
func ExportText(w io.Writer, report *Report) error {
	p := message.NewPrinter(language.Dutch)
	var b strings.Builder

	b.WriteString("MAANDAFSLUITING " + strings.ToUpper(report.PeriodLabel) + "\n")
	b.WriteString(report.EntityName + "\n")
	b.WriteString("Opgesteld: " + report.GeneratedAt.Format("02-01-2006 15:04") + "\n")
	b.WriteString("Cijfers per: " + report.SnapshotAt.Format("02-01-2006 15:04") + "\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString("OORDEEL: " + verdictLabels[report.Verdict] + "\n\n")

	b.WriteString("RESULTAAT\n")
	p.Fprintf(&b, "  Omzet      € %.2f\n", report.Figures.Revenue)
	p.Fprintf(&b, "  Kosten     € %.2f\n", report.Figures.Costs)
	p.Fprintf(&b, "  Resultaat  € %.2f (marge %.1f%%)\n", report.Figures.Result, report.Figures.MarginPct)
	if report.Comparison != nil {
		p.Fprintf(&b, "  Omzet t.o.v. vorige maand: %+.1f%%\n", report.Comparison.RevenuePct)
	}
	b.WriteString("\n")

	b.WriteString("CONTROLES\n")
	for _, check := range report.Checks {
		fmt.Fprintf(&b, "  %-12s %s: %s\n", severityMarkers[check.Severity], check.Name, check.Summary)
		for _, item := range check.Items {
			line := "    - " + item.Reference
			if item.Partner != "" {
				line += " (" + item.Partner + ")"
			}
			b.WriteString(line)
			p.Fprintf(&b, " € %.2f", item.Amount)
			if item.Days > 0 {
				fmt.Fprintf(&b, ", %d dagen", item.Days)
			}
			if item.Note != "" {
				b.WriteString(", " + item.Note)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("BTW " + report.VAT.Label + "\n")
	p.Fprintf(&b, "  Af te dragen    € %.2f\n", report.VAT.OutputVAT)
	p.Fprintf(&b, "  Voorbelasting   € %.2f\n", report.VAT.InputVAT)
	p.Fprintf(&b, "  Saldo           € %.2f\n", report.VAT.NetPayable)
	if report.VAT.Deviation != nil {
		p.Fprintf(&b, "  Vorige periode (%s): € %.2f\n",
			report.VAT.Deviation.PreviousLabel, report.VAT.Deviation.PreviousAmount)
	}
	b.WriteString("\n")

	b.WriteString("TREND (6 MAANDEN)\n")
	for _, point := range report.Trend.Points {
		p.Fprintf(&b, "  %-10s omzet € %.2f, resultaat € %.2f\n", point.Label, point.Revenue, point.Result)
	}
	p.Fprintf(&b, "  Gemiddeld  omzet € %.2f, resultaat € %.2f\n", report.Trend.AvgRevenue, report.Trend.AvgResult)

	_, err := io.WriteString(w, b.String())
	return err
}
