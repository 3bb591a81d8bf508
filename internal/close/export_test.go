package close

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-group/labdash/internal/snapshot"
)

func flaggedReport(t *testing.T) *Report {
	t.Helper()
	data := cleanEntity()
	figures := data.Periods["2026-07"]
	figures.CreditTotal -= 200
	data.Periods["2026-07"] = figures
	data.Receivables = []snapshot.OpenItem{
		{Label: "F2026-004", Partner: "Jansen BV", Date: testAsOf.Add(-120 * 24 * time.Hour), AmountResidual: 2100},
	}
	data.Invoices = []snapshot.Invoice{{
		Number:         "V2026-031",
		MoveType:       snapshot.MoveTypeSale,
		PaymentState:   snapshot.PaymentStateNotPaid,
		IssueDate:      time.Date(2026, 7, 9, 0, 0, 0, 0, time.UTC),
		AmountResidual: 850,
	}}
	return buildTestReport(t, data)
}

// The JSON and CSV exports must flag exactly the same items; neither format
// may drop or invent a finding.
func TestExportsCarrySameFlaggedItems(t *testing.T) {
	report := flaggedReport(t)
	require.NotEmpty(t, report.FlaggedChecks())

	var jsonBuf bytes.Buffer
	require.NoError(t, ExportJSON(&jsonBuf, report))
	var decoded Report
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))

	jsonRefs := map[string]int{}
	for _, check := range decoded.FlaggedChecks() {
		for _, item := range check.Items {
			jsonRefs[check.Code+"/"+item.Reference]++
		}
	}

	var csvBuf bytes.Buffer
	require.NoError(t, ExportCSV(&csvBuf, report))
	records, err := csv.NewReader(&csvBuf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, csvHeader, records[0])

	nameToCode := map[string]string{}
	for _, check := range report.Checks {
		nameToCode[check.Name] = check.Code
	}
	csvRefs := map[string]int{}
	for _, record := range records[1:] {
		csvRefs[nameToCode[record[0]]+"/"+record[2]]++
	}

	assert.Equal(t, jsonRefs, csvRefs)
}

func TestExportJSONRoundTrip(t *testing.T) {
	report := flaggedReport(t)

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, report))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.Verdict, decoded.Verdict)
	assert.Equal(t, report.Period, decoded.Period)
	assert.Len(t, decoded.Checks, len(report.Checks))
}

func TestExportCSVRows(t *testing.T) {
	report := flaggedReport(t)

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, report))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	// Header plus one row per flagged item.
	var want int
	for _, check := range report.FlaggedChecks() {
		if len(check.Items) == 0 {
			want++
			continue
		}
		want += len(check.Items)
	}
	assert.Len(t, records, want+1)

	var sawAging bool
	for _, record := range records[1:] {
		if record[2] == "F2026-004" {
			sawAging = true
			assert.Equal(t, "critical", record[1])
			assert.Equal(t, "120", record[5])
			assert.Equal(t, "2100.00", record[6])
		}
	}
	assert.True(t, sawAging)
}

func TestExportText(t *testing.T) {
	report := flaggedReport(t)

	var buf bytes.Buffer
	require.NoError(t, ExportText(&buf, report))
	text := buf.String()
	assert.Contains(t, text, "MAANDAFSLUITING JULI 2026")
	assert.Contains(t, text, "LAB Shops")
	assert.Contains(t, text, "NOG NIET GEREED")
	assert.Contains(t, text, "F2026-004")
	assert.Contains(t, text, "BTW")
}
