// Package snapshot models the aggregated financial figures published for the
// LAB Group dashboard. A snapshot is immutable once published and replaced
// wholesale on every refresh cycle.
package snapshot

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/lab-group/labdash/internal/shared"
)

// Entity is one of the LAB Group business units.
type Entity struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Entities lists the six LAB Group business units.
var Entities = []Entity{
	{ID: 1, Code: "conceptstore", Name: "LAB Conceptstore"},
	{ID: 2, Code: "shops", Name: "LAB Shops"},
	{ID: 3, Code: "projects", Name: "LAB Projects"},
	{ID: 4, Code: "holding", Name: "LAB Holding"},
	{ID: 5, Code: "verf-en-wand", Name: "Verf en Wand"},
	{ID: 6, Code: "vestingh", Name: "Vestingh Art of Living"},
}

// IntercompanyPartners are the partner ids excluded from external analysis.
var IntercompanyPartners = []int64{1, 2, 3, 4, 23, 24, 4509, 20618, 74170, 79863}

// IsIntercompanyPartner reports whether the partner id belongs to a group
// company rather than an external relation.
func IsIntercompanyPartner(id int64) bool {
	for _, partner := range IntercompanyPartners {
		if partner == id {
			return true
		}
	}
	return false
}

// EntityByCode finds a business unit by its code.
func EntityByCode(code string) (Entity, bool) {
	for _, e := range Entities {
		if e.Code == code {
			return e, true
		}
	}
	return Entity{}, false
}

// EntityByID finds a business unit by its Odoo company id.
func EntityByID(id int64) (Entity, bool) {
	for _, e := range Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Snapshot is the point-in-time document consumed by every dashboard view.
type Snapshot struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Source      string                 `json:"source"`
	Entities    map[string]*EntityData `json:"entities"`
}

// EntityData groups all figures for one business unit.
type EntityData struct {
	ID              int64                    `json:"id"`
	Name            string                   `json:"name"`
	Periods         map[string]PeriodFigures `json:"periods"`
	BankAccounts    []BankAccount            `json:"bank_accounts,omitempty"`
	Invoices        []Invoice                `json:"invoices,omitempty"`
	Receivables     []OpenItem               `json:"receivables,omitempty"`
	Payables        []OpenItem               `json:"payables,omitempty"`
	UnpostedEntries []JournalEntry           `json:"unposted_entries,omitempty"`
	Products        []ProductSales           `json:"products,omitempty"`
	Customers       []CustomerLocation       `json:"customers,omitempty"`
	Accounts        []AccountBalance         `json:"accounts,omitempty"`
}

// PeriodFigures holds the aggregates for a single month.
type PeriodFigures struct {
	Revenue      float64                    `json:"revenue"`
	Costs        float64                    `json:"costs"`
	DebitTotal   float64                    `json:"debit_total"`
	CreditTotal  float64                    `json:"credit_total"`
	CashIn       float64                    `json:"cash_in"`
	CashOut      float64                    `json:"cash_out"`
	CostsByGroup map[string]float64         `json:"costs_by_group,omitempty"`
	Categories   map[string]CategoryFigures `json:"categories,omitempty"`
	VAT          []VATLine                  `json:"vat,omitempty"`
}

// Result returns the period result (omzet minus kosten).
func (f PeriodFigures) Result() float64 {
	return f.Revenue - f.Costs
}

// MarginPct returns the result as a percentage of revenue.
func (f PeriodFigures) MarginPct() float64 {
	if f.Revenue == 0 {
		return 0
	}
	return f.Result() / f.Revenue * 100
}

// CategoryFigures pairs revenue with cost of goods sold per product category.
type CategoryFigures struct {
	Revenue float64 `json:"revenue"`
	COGS    float64 `json:"cogs"`
}

// MarginPct returns the gross margin percentage for the category.
func (c CategoryFigures) MarginPct() float64 {
	if c.Revenue <= 0 {
		return 0
	}
	return (c.Revenue - c.COGS) / c.Revenue * 100
}

// VATLine is one BTW account aggregate inside a period.
type VATLine struct {
	AccountCode string  `json:"account_code"`
	AccountName string  `json:"account_name"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
}

// BankAccount is the current balance of one bank journal.
type BankAccount struct {
	Journal     string  `json:"journal"`
	Code        string  `json:"code"`
	AccountCode string  `json:"account_code"`
	Balance     float64 `json:"balance"`
}

// Intercompany reports whether the account is an R/C (rekening courant)
// position with a group company. Account codes 12* are group receivables,
// 14* group payables.
func (b BankAccount) Intercompany() bool {
	if strings.Contains(b.Journal, "R/C") || strings.Contains(b.Journal, "RC ") {
		return true
	}
	return strings.HasPrefix(b.AccountCode, "12") || strings.HasPrefix(b.AccountCode, "14")
}

// Invoice mirrors one customer or supplier invoice. Read-only for the
// dashboard; the source document stays in Odoo.
type Invoice struct {
	Number         string    `json:"number"`
	MoveType       string    `json:"move_type"`
	Partner        string    `json:"partner"`
	IssueDate      time.Time `json:"issue_date"`
	DueDate        time.Time `json:"due_date"`
	AmountTotal    float64   `json:"amount_total"`
	AmountResidual float64   `json:"amount_residual"`
	State          string    `json:"state"`
	PaymentState   string    `json:"payment_state"`
	DocumentURL    string    `json:"document_url,omitempty"`
}

// Invoice move types and payment states as used by Odoo.
const (
	MoveTypeSale     = "out_invoice"
	MoveTypePurchase = "in_invoice"

	PaymentStateNotPaid = "not_paid"
	PaymentStatePartial = "partial"
	PaymentStatePaid    = "paid"
)

// Unpaid reports whether the invoice still carries an open amount.
func (i Invoice) Unpaid() bool {
	return i.PaymentState == PaymentStateNotPaid || i.PaymentState == PaymentStatePartial
}

// OpenItem is an unreconciled receivable or payable line.
type OpenItem struct {
	Date           time.Time `json:"date"`
	Label          string    `json:"label"`
	Partner        string    `json:"partner"`
	AmountResidual float64   `json:"amount_residual"`
}

// DaysOutstanding returns whole days between the item date and asOf.
func (o OpenItem) DaysOutstanding(asOf time.Time) int {
	if o.Date.IsZero() || asOf.Before(o.Date) {
		return 0
	}
	return int(asOf.Sub(o.Date).Hours() / 24)
}

// JournalEntry is a draft (unposted) accounting move.
type JournalEntry struct {
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
	Partner  string    `json:"partner"`
	Amount   float64   `json:"amount"`
	MoveType string    `json:"move_type"`
}

// ProductSales aggregates revenue per product for the snapshot year.
type ProductSales struct {
	Product  string  `json:"product"`
	Category string  `json:"category"`
	Quantity float64 `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// CustomerLocation positions a customer for the klantenkaart view.
type CustomerLocation struct {
	Name     string  `json:"name"`
	City     string  `json:"city"`
	Postcode string  `json:"postcode"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Revenue  float64 `json:"revenue"`
}

// AccountBalance is one general-ledger account balance as of the snapshot.
type AccountBalance struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// Asset reports whether the account sits on the ACTIVA side of the
// quadrant. Dutch chart: 0* fixed assets, 1* current assets; 2* and up are
// liabilities and equity.
func (a AccountBalance) Asset() bool {
	return strings.HasPrefix(a.Code, "0") || strings.HasPrefix(a.Code, "1")
}

// ErrInvalid marks a snapshot that failed structural validation.
var ErrInvalid = errors.New("snapshot: invalid document")

// Validate rejects snapshots that would render misleading views. A snapshot
// with no generation timestamp or no entities is treated as a parse failure,
// never shown partially.
func (s *Snapshot) Validate() error {
	if s == nil {
		return ErrInvalid
	}
	if s.GeneratedAt.IsZero() {
		return errors.New("snapshot: missing generated_at")
	}
	if len(s.Entities) == 0 {
		return errors.New("snapshot: no entities")
	}
	for code, data := range s.Entities {
		if data == nil {
			return errors.New("snapshot: entity " + code + " has no data")
		}
	}
	return nil
}

// Entity returns the data for one business unit by code.
func (s *Snapshot) Entity(code string) (*EntityData, error) {
	data, ok := s.Entities[code]
	if !ok || data == nil {
		return nil, shared.ErrNotFound
	}
	return data, nil
}

// Scope resolves an entity selection. An empty code merges all business
// units into a combined view, mirroring the "Alle bedrijven" selector.
func (s *Snapshot) Scope(code string) (*EntityData, error) {
	if code != "" {
		return s.Entity(code)
	}
	merged := &EntityData{Name: "Alle bedrijven", Periods: map[string]PeriodFigures{}}
	codes := make([]string, 0, len(s.Entities))
	for c := range s.Entities {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		data := s.Entities[c]
		for period, figures := range data.Periods {
			merged.Periods[period] = addFigures(merged.Periods[period], figures)
		}
		merged.BankAccounts = append(merged.BankAccounts, data.BankAccounts...)
		merged.Invoices = append(merged.Invoices, data.Invoices...)
		merged.Receivables = append(merged.Receivables, data.Receivables...)
		merged.Payables = append(merged.Payables, data.Payables...)
		merged.UnpostedEntries = append(merged.UnpostedEntries, data.UnpostedEntries...)
		merged.Products = append(merged.Products, data.Products...)
		merged.Customers = append(merged.Customers, data.Customers...)
		merged.Accounts = append(merged.Accounts, data.Accounts...)
	}
	return merged, nil
}

func addFigures(a, b PeriodFigures) PeriodFigures {
	a.Revenue += b.Revenue
	a.Costs += b.Costs
	a.DebitTotal += b.DebitTotal
	a.CreditTotal += b.CreditTotal
	a.CashIn += b.CashIn
	a.CashOut += b.CashOut
	if len(b.CostsByGroup) > 0 {
		if a.CostsByGroup == nil {
			a.CostsByGroup = map[string]float64{}
		}
		for k, v := range b.CostsByGroup {
			a.CostsByGroup[k] += v
		}
	}
	if len(b.Categories) > 0 {
		if a.Categories == nil {
			a.Categories = map[string]CategoryFigures{}
		}
		for k, v := range b.Categories {
			cur := a.Categories[k]
			cur.Revenue += v.Revenue
			cur.COGS += v.COGS
			a.Categories[k] = cur
		}
	}
	a.VAT = append(a.VAT, b.VAT...)
	return a
}
