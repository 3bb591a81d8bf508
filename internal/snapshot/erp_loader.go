package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lab-group/labdash/internal/odoo"
	"github.com/lab-group/labdash/internal/shared"
)

const (
	// historyMonths is how far back period figures are aggregated. Covers
	// the running year plus the comparison month of the year before.
	historyMonths = 14

	// detailMonths is how far back the expensive per-account breakdowns
	// (cost groups, category margins, VAT lines) are kept. Covers the
	// month under review, its predecessor and two full VAT quarters.
	detailMonths = 7

	openItemLimit = 2000
	productLimit  = 500
	customerLimit = 250
)

// ERPLoader builds a snapshot by querying the Odoo accounting models.
// Every query is read-only; the loader never writes back to the ERP.
type ERPLoader struct {
	client *odoo.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewERPLoader(client *odoo.Client, logger *slog.Logger) *ERPLoader {
	return &ERPLoader{client: client, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (l *ERPLoader) WithNow(now func() time.Time) *ERPLoader {
	l.now = now
	return l
}

// Load aggregates all six business units in parallel. A failure for any
// unit fails the whole refresh; a snapshot is published complete or not
// at all.
func (l *ERPLoader) Load(ctx context.Context) (*Snapshot, error) {
	if !l.client.Configured() {
		return nil, odoo.ErrNotConfigured
	}
	now := l.now()
	snap := &Snapshot{
		GeneratedAt: now,
		Source:      "odoo",
		Entities:    make(map[string]*EntityData, len(Entities)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, ent := range Entities {
		ent := ent
		g.Go(func() error {
			started := time.Now()
			data, err := l.loadEntity(gctx, ent, now)
			if err != nil {
				return fmt.Errorf("load %s: %w", ent.Code, err)
			}
			l.logger.Info("entity loaded",
				slog.String("entity", ent.Code),
				slog.Duration("took", time.Since(started)))
			mu.Lock()
			snap.Entities[ent.Code] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (l *ERPLoader) loadEntity(ctx context.Context, ent Entity, now time.Time) (*EntityData, error) {
	data := &EntityData{
		ID:      ent.ID,
		Name:    ent.Name,
		Periods: make(map[string]PeriodFigures, historyMonths),
	}

	current := shared.PeriodOf(now)
	for i := 0; i < historyMonths; i++ {
		period := current.AddMonths(-i)
		figures, err := l.loadPeriod(ctx, ent, period, i < detailMonths)
		if err != nil {
			return nil, fmt.Errorf("period %s: %w", period, err)
		}
		data.Periods[period.String()] = figures
	}

	var err error
	if data.BankAccounts, err = l.loadBankAccounts(ctx, ent); err != nil {
		return nil, err
	}
	if data.Invoices, err = l.loadInvoices(ctx, ent, current.AddMonths(-historyMonths+1).Start()); err != nil {
		return nil, err
	}
	if data.Receivables, err = l.loadOpenItems(ctx, ent, "asset_receivable"); err != nil {
		return nil, err
	}
	if data.Payables, err = l.loadOpenItems(ctx, ent, "liability_payable"); err != nil {
		return nil, err
	}
	if data.UnpostedEntries, err = l.loadUnposted(ctx, ent); err != nil {
		return nil, err
	}
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	if data.Products, err = l.loadProducts(ctx, ent, yearStart, now); err != nil {
		return nil, err
	}
	if data.Customers, err = l.loadCustomers(ctx, ent, yearStart, now); err != nil {
		return nil, err
	}
	if data.Accounts, err = l.loadAccounts(ctx, ent, now); err != nil {
		return nil, err
	}
	return data, nil
}

// loadPeriod aggregates one month. Revenue lives on 8* accounts, costs on
// 4*, 6* and 7*. Figures come from posted move lines only; drafts are
// surfaced separately as unposted entries.
func (l *ERPLoader) loadPeriod(ctx context.Context, ent Entity, period shared.Period, detail bool) (PeriodFigures, error) {
	var figures PeriodFigures
	from, to := odooDate(period.Start()), odooDate(period.End())

	base := []any{
		[]any{"company_id", "=", ent.ID},
		[]any{"parent_state", "=", "posted"},
		[]any{"date", ">=", from},
		[]any{"date", "<=", to},
	}

	revenue, err := l.sumLines(ctx, append(domain(base), []any{"account_id.code", "=like", "8%"}))
	if err != nil {
		return figures, fmt.Errorf("revenue: %w", err)
	}
	figures.Revenue = revenue.credit - revenue.debit

	costs, err := l.sumLines(ctx, append(domain(base),
		"|", "|",
		[]any{"account_id.code", "=like", "4%"},
		[]any{"account_id.code", "=like", "6%"},
		[]any{"account_id.code", "=like", "7%"}))
	if err != nil {
		return figures, fmt.Errorf("costs: %w", err)
	}
	figures.Costs = costs.debit - costs.credit

	// Trial balance as of month end, used by the close balance check.
	totals, err := l.sumLines(ctx, []any{
		[]any{"company_id", "=", ent.ID},
		[]any{"parent_state", "=", "posted"},
		[]any{"date", "<=", to},
	})
	if err != nil {
		return figures, fmt.Errorf("trial balance: %w", err)
	}
	figures.DebitTotal = totals.debit
	figures.CreditTotal = totals.credit

	cash, err := l.sumLines(ctx, append(domain(base), []any{"journal_id.type", "=", "bank"}))
	if err != nil {
		return figures, fmt.Errorf("cashflow: %w", err)
	}
	figures.CashIn = cash.debit
	figures.CashOut = cash.credit

	if !detail {
		return figures, nil
	}
	if figures.CostsByGroup, err = l.loadCostGroups(ctx, base); err != nil {
		return figures, err
	}
	if figures.Categories, err = l.loadCategories(ctx, ent, base); err != nil {
		return figures, err
	}
	if figures.VAT, err = l.loadVAT(ctx, base); err != nil {
		return figures, err
	}
	return figures, nil
}

type lineSums struct {
	debit, credit float64
}

func (l *ERPLoader) sumLines(ctx context.Context, dom []any) (lineSums, error) {
	rows, err := l.client.ReadGroup(ctx, "account.move.line", dom,
		[]string{"debit:sum", "credit:sum"}, nil)
	if err != nil {
		return lineSums{}, err
	}
	var sums lineSums
	for _, row := range rows {
		sums.debit += row.Float("debit")
		sums.credit += row.Float("credit")
	}
	return sums, nil
}

// loadCostGroups breaks the month's costs down per two-digit account group
// (40 personnel, 41 housing, and so on), feeding the variance check.
func (l *ERPLoader) loadCostGroups(ctx context.Context, base []any) (map[string]float64, error) {
	dom := append(domain(base),
		"|", "|",
		[]any{"account_id.code", "=like", "4%"},
		[]any{"account_id.code", "=like", "6%"},
		[]any{"account_id.code", "=like", "7%"})
	rows, err := l.client.ReadGroup(ctx, "account.move.line", dom,
		[]string{"debit:sum", "credit:sum"}, []string{"account_id"})
	if err != nil {
		return nil, fmt.Errorf("cost groups: %w", err)
	}
	groups := make(map[string]float64)
	for _, row := range rows {
		_, name := row.Ref("account_id")
		if len(name) < 2 {
			continue
		}
		groups[name[:2]] += row.Float("debit") - row.Float("credit")
	}
	return groups, nil
}

// loadCategories pairs revenue with cost of goods sold per product
// category for the margin-shift check.
func (l *ERPLoader) loadCategories(ctx context.Context, ent Entity, base []any) (map[string]CategoryFigures, error) {
	dom := append(domain(base),
		[]any{"product_id", "!=", false},
		"|",
		[]any{"account_id.code", "=like", "8%"},
		[]any{"account_id.code", "=like", "7%"})
	rows, err := l.client.ReadGroup(ctx, "account.move.line", dom,
		[]string{"debit:sum", "credit:sum"}, []string{"product_id", "account_id"})
	if err != nil {
		return nil, fmt.Errorf("category lines: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	productIDs := make([]int64, 0, len(rows))
	seen := make(map[int64]bool)
	for _, row := range rows {
		id, _ := row.Ref("product_id")
		if id != 0 && !seen[id] {
			seen[id] = true
			productIDs = append(productIDs, id)
		}
	}
	categories, err := l.productCategories(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	figures := make(map[string]CategoryFigures)
	for _, row := range rows {
		productID, _ := row.Ref("product_id")
		category := categories[productID]
		if category == "" {
			category = "Overig"
		}
		_, account := row.Ref("account_id")
		cur := figures[category]
		if len(account) > 0 && account[0] == '8' {
			cur.Revenue += row.Float("credit") - row.Float("debit")
		} else {
			cur.COGS += row.Float("debit") - row.Float("credit")
		}
		figures[category] = cur
	}
	return figures, nil
}

// productCategories maps product ids to their category name.
func (l *ERPLoader) productCategories(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := l.client.SearchRead(ctx, "product.product",
		[]any{[]any{"id", "in", ids}},
		[]string{"categ_id"},
		odoo.CallOptions{Limit: len(ids), IncludeArchived: true})
	if err != nil {
		return nil, fmt.Errorf("product categories: %w", err)
	}
	categories := make(map[int64]string, len(rows))
	for _, row := range rows {
		_, name := row.Ref("categ_id")
		categories[row.ID()] = name
	}
	return categories, nil
}

// loadVAT collects the month's BTW account movements (15* accounts).
func (l *ERPLoader) loadVAT(ctx context.Context, base []any) ([]VATLine, error) {
	dom := append(domain(base),
		"|",
		[]any{"account_id.code", "=like", "15%"},
		[]any{"account_id.name", "ilike", "btw"})
	rows, err := l.client.ReadGroup(ctx, "account.move.line", dom,
		[]string{"debit:sum", "credit:sum"}, []string{"account_id"})
	if err != nil {
		return nil, fmt.Errorf("vat lines: %w", err)
	}
	lines := make([]VATLine, 0, len(rows))
	for _, row := range rows {
		_, display := row.Ref("account_id")
		code, name := splitAccountDisplay(display)
		lines = append(lines, VATLine{
			AccountCode: code,
			AccountName: name,
			Debit:       row.Float("debit"),
			Credit:      row.Float("credit"),
		})
	}
	return lines, nil
}

// loadBankAccounts reads the balance of every bank journal plus the R/C
// positions on the 12* and 14* group accounts.
func (l *ERPLoader) loadBankAccounts(ctx context.Context, ent Entity) ([]BankAccount, error) {
	journals, err := l.client.SearchRead(ctx, "account.journal",
		[]any{
			[]any{"company_id", "=", ent.ID},
			[]any{"type", "=", "bank"},
		},
		[]string{"name", "code", "default_account_id"}, odoo.CallOptions{})
	if err != nil {
		return nil, fmt.Errorf("bank journals: %w", err)
	}

	accounts := make([]BankAccount, 0, len(journals))
	for _, journal := range journals {
		accountID, accountName := journal.Ref("default_account_id")
		if accountID == 0 {
			continue
		}
		sums, err := l.sumLines(ctx, []any{
			[]any{"company_id", "=", ent.ID},
			[]any{"parent_state", "=", "posted"},
			[]any{"account_id", "=", accountID},
		})
		if err != nil {
			return nil, fmt.Errorf("bank balance %s: %w", journal.String("name"), err)
		}
		code, _ := splitAccountDisplay(accountName)
		accounts = append(accounts, BankAccount{
			Journal:     journal.String("name"),
			Code:        journal.String("code"),
			AccountCode: code,
			Balance:     sums.debit - sums.credit,
		})
	}

	rcRows, err := l.client.ReadGroup(ctx, "account.move.line",
		[]any{
			[]any{"company_id", "=", ent.ID},
			[]any{"parent_state", "=", "posted"},
			"|",
			[]any{"account_id.code", "=like", "12%"},
			[]any{"account_id.code", "=like", "14%"},
		},
		[]string{"debit:sum", "credit:sum"}, []string{"account_id"})
	if err != nil {
		return nil, fmt.Errorf("rc positions: %w", err)
	}
	for _, row := range rcRows {
		_, display := row.Ref("account_id")
		code, name := splitAccountDisplay(display)
		balance := row.Float("debit") - row.Float("credit")
		if balance == 0 {
			continue
		}
		accounts = append(accounts, BankAccount{
			Journal:     name,
			AccountCode: code,
			Balance:     balance,
		})
	}
	return accounts, nil
}

func (l *ERPLoader) loadInvoices(ctx context.Context, ent Entity, since time.Time) ([]Invoice, error) {
	rows, err := l.client.SearchRead(ctx, "account.move",
		[]any{
			[]any{"company_id", "=", ent.ID},
			[]any{"move_type", "in", []string{MoveTypeSale, MoveTypePurchase}},
			[]any{"state", "=", "posted"},
			[]any{"invoice_date", ">=", odooDate(since)},
		},
		[]string{"name", "move_type", "partner_id", "invoice_date", "invoice_date_due",
			"amount_total", "amount_residual", "state", "payment_state"},
		odoo.CallOptions{Limit: openItemLimit})
	if err != nil {
		return nil, fmt.Errorf("invoices: %w", err)
	}
	invoices := make([]Invoice, 0, len(rows))
	for _, row := range rows {
		_, partner := row.Ref("partner_id")
		invoices = append(invoices, Invoice{
			Number:         row.String("name"),
			MoveType:       row.String("move_type"),
			Partner:        partner,
			IssueDate:      parseOdooDate(row.String("invoice_date")),
			DueDate:        parseOdooDate(row.String("invoice_date_due")),
			AmountTotal:    row.Float("amount_total"),
			AmountResidual: row.Float("amount_residual"),
			State:          row.String("state"),
			PaymentState:   row.String("payment_state"),
			DocumentURL:    l.client.WebURL("account.move", row.ID()),
		})
	}
	return invoices, nil
}

func (l *ERPLoader) loadOpenItems(ctx context.Context, ent Entity, accountType string) ([]OpenItem, error) {
	rows, err := l.client.SearchRead(ctx, "account.move.line",
		[]any{
			[]any{"company_id", "=", ent.ID},
			[]any{"parent_state", "=", "posted"},
			[]any{"account_id.account_type", "=", accountType},
			[]any{"reconciled", "=", false},
			[]any{"amount_residual", "!=", 0},
		},
		[]string{"date", "name", "partner_id", "amount_residual"},
		odoo.CallOptions{Limit: openItemLimit})
	if err != nil {
		return nil, fmt.Errorf("open items %s: %w", accountType, err)
	}
	items := make([]OpenItem, 0, len(rows))
	for _, row := range rows {
		_, partner := row.Ref("partner_id")
		items = append(items, OpenItem{
			Date:           parseOdooDate(row.String("date")),
			Label:          row.String("name"),
			Partner:        partner,
			AmountResidual: row.Float("amount_residual"),
		})
	}
	return items, nil
}

func (l *ERPLoader) loadUnposted(ctx context.Context, ent Entity) ([]JournalEntry, error) {
	rows, err := l.client.SearchRead(ctx, "account.move",
		[]any{
			[]any{"company_id", "=", ent.ID},
			[]any{"state", "=", "draft"},
		},
		[]string{"name", "date", "partner_id", "amount_total", "move_type"},
		odoo.CallOptions{Limit: openItemLimit})
	if err != nil {
		return nil, fmt.Errorf("unposted moves: %w", err)
	}
	entries := make([]JournalEntry, 0, len(rows))
	for _, row := range rows {
		_, partner := row.Ref("partner_id")
		entries = append(entries, JournalEntry{
			Name:     row.String("name"),
			Date:     parseOdooDate(row.String("date")),
			Partner:  partner,
			Amount:   row.Float("amount_total"),
			MoveType: row.String("move_type"),
		})
	}
	return entries, nil
}

// loadProducts aggregates the year's revenue per product.
func (l *ERPLoader) loadProducts(ctx context.Context, ent Entity, from, to time.Time) ([]ProductSales, error) {
	rows, err := l.client.ReadGroup(ctx, "account.move.line",
		[]any{
			[]any{"company_id", "=", ent.ID},
			[]any{"parent_state", "=", "posted"},
			[]any{"date", ">=", odooDate(from)},
			[]any{"date", "<=", odooDate(to)},
			[]any{"account_id.code", "=like", "8%"},
			[]any{"product_id", "!=", false},
		},
		[]string{"quantity:sum", "debit:sum", "credit:sum"}, []string{"product_id"})
	if err != nil {
		return nil, fmt.Errorf("product sales: %w", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id, _ := row.Ref("product_id"); id != 0 {
			ids = append(ids, id)
		}
	}
	categories, err := l.productCategories(ctx, ids)
	if err != nil {
		return nil, err
	}
	products := make([]ProductSales, 0, len(rows))
	for _, row := range rows {
		id, name := row.Ref("product_id")
		if id == 0 {
			continue
		}
		products = append(products, ProductSales{
			Product:  name,
			Category: categories[id],
			Quantity: row.Float("quantity"),
			Revenue:  row.Float("credit") - row.Float("debit"),
		})
		if len(products) == productLimit {
			break
		}
	}
	return products, nil
}

// loadCustomers positions this year's invoiced customers for the map view.
// Group companies are left out so the map shows external relations only.
// Coordinates come from the partner record when geolocated, otherwise from
// the postcode region table.
func (l *ERPLoader) loadCustomers(ctx context.Context, ent Entity, from, to time.Time) ([]CustomerLocation, error) {
	rows, err := l.client.ReadGroup(ctx, "account.move",
		[]any{
			[]any{"company_id", "=", ent.ID},
			[]any{"move_type", "=", MoveTypeSale},
			[]any{"state", "=", "posted"},
			[]any{"invoice_date", ">=", odooDate(from)},
			[]any{"invoice_date", "<=", odooDate(to)},
		},
		[]string{"amount_total:sum"}, []string{"partner_id"})
	if err != nil {
		return nil, fmt.Errorf("customer revenue: %w", err)
	}

	revenue := make(map[int64]float64, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, _ := row.Ref("partner_id")
		if id == 0 || IsIntercompanyPartner(id) {
			continue
		}
		revenue[id] += row.Float("amount_total")
		ids = append(ids, id)
		if len(ids) == customerLimit {
			break
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	partners, err := l.client.SearchRead(ctx, "res.partner",
		[]any{[]any{"id", "in", ids}},
		[]string{"name", "city", "zip", "partner_latitude", "partner_longitude"},
		odoo.CallOptions{Limit: customerLimit, IncludeArchived: true})
	if err != nil {
		return nil, fmt.Errorf("partners: %w", err)
	}
	customers := make([]CustomerLocation, 0, len(partners))
	for _, partner := range partners {
		loc := CustomerLocation{
			Name:     partner.String("name"),
			City:     partner.String("city"),
			Postcode: partner.String("zip"),
			Lat:      partner.Float("partner_latitude"),
			Lon:      partner.Float("partner_longitude"),
			Revenue:  revenue[partner.ID()],
		}
		if loc.Lat == 0 && loc.Lon == 0 {
			loc.Lat, loc.Lon = postcodeCoords(loc.Postcode)
		}
		if loc.Lat == 0 && loc.Lon == 0 {
			continue
		}
		customers = append(customers, loc)
	}
	return customers, nil
}

// loadAccounts reads the balance-sheet accounts (0*, 1*, 2*) as of now.
func (l *ERPLoader) loadAccounts(ctx context.Context, ent Entity, asOf time.Time) ([]AccountBalance, error) {
	rows, err := l.client.ReadGroup(ctx, "account.move.line",
		[]any{
			[]any{"company_id", "=", ent.ID},
			[]any{"parent_state", "=", "posted"},
			[]any{"date", "<=", odooDate(asOf)},
			"|", "|",
			[]any{"account_id.code", "=like", "0%"},
			[]any{"account_id.code", "=like", "1%"},
			[]any{"account_id.code", "=like", "2%"},
		},
		[]string{"debit:sum", "credit:sum"}, []string{"account_id"})
	if err != nil {
		return nil, fmt.Errorf("balance sheet: %w", err)
	}
	accounts := make([]AccountBalance, 0, len(rows))
	for _, row := range rows {
		_, display := row.Ref("account_id")
		code, name := splitAccountDisplay(display)
		balance := row.Float("debit") - row.Float("credit")
		if balance == 0 {
			continue
		}
		accounts = append(accounts, AccountBalance{Code: code, Name: name, Balance: balance})
	}
	return accounts, nil
}

// domain copies a base domain so appends never alias.
func domain(base []any) []any {
	out := make([]any, len(base), len(base)+4)
	copy(out, base)
	return out
}

func odooDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func parseOdooDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// splitAccountDisplay splits Odoo's "1000 Kas" display name into code and
// name parts.
func splitAccountDisplay(display string) (code, name string) {
	for i := 0; i < len(display); i++ {
		if display[i] == ' ' {
			return display[:i], display[i+1:]
		}
		if display[i] < '0' || display[i] > '9' {
			break
		}
	}
	return "", display
}
