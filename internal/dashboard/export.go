package dashboard

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// WriteInvoiceCSV writes the invoice list with the columns the accountant
// expects in a reconciliation sheet.
func WriteInvoiceCSV(w io.Writer, view InvoiceView) error {
	writer := csv.NewWriter(w)
	header := []string{"nummer", "type", "relatie", "factuurdatum", "vervaldatum", "bedrag", "openstaand", "status"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, invoice := range view.Invoices {
		record := []string{
			invoice.Number,
			invoice.MoveType,
			invoice.Partner,
			formatDate(invoice.IssueDate),
			formatDate(invoice.DueDate),
			strconv.FormatFloat(invoice.AmountTotal, 'f', 2, 64),
			strconv.FormatFloat(invoice.AmountResidual, 'f', 2, 64),
			invoice.PaymentState,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCostCSV writes the cost breakdown per account group.
func WriteCostCSV(w io.Writer, view CostView) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"groep", "omschrijving", "bedrag", "vorige maand", "verschil"}); err != nil {
		return err
	}
	for _, row := range view.Rows {
		record := []string{
			row.Group,
			row.Name,
			strconv.FormatFloat(row.Amount, 'f', 2, 64),
			strconv.FormatFloat(row.Previous, 'f', 2, 64),
			strconv.FormatFloat(row.Delta, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCashflowCSV writes the monthly bank movement series.
func WriteCashflowCSV(w io.Writer, view CashflowView) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"maand", "ontvangsten", "uitgaven", "netto"}); err != nil {
		return err
	}
	for _, month := range view.Months {
		record := []string{
			month.Period,
			strconv.FormatFloat(month.In, 'f', 2, 64),
			strconv.FormatFloat(month.Out, 'f', 2, 64),
			strconv.FormatFloat(month.Net, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteProductCSV writes the product ranking.
func WriteProductCSV(w io.Writer, view ProductView) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"product", "categorie", "aantal", "omzet"}); err != nil {
		return err
	}
	for _, product := range view.Products {
		record := []string{
			product.Product,
			product.Category,
			strconv.FormatFloat(product.Quantity, 'f', 0, 64),
			strconv.FormatFloat(product.Revenue, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
