// Package dashboard builds the view models behind the LAB Group reporting
// pages. Everything is computed from the published snapshot; no request
// ever reaches the ERP directly.
package dashboard

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lab-group/labdash/internal/shared"
	"github.com/lab-group/labdash/internal/snapshot"
)

// SnapshotSource provides the published snapshot.
type SnapshotSource interface {
	Current(ctx context.Context) (*snapshot.Snapshot, error)
}

// Service computes dashboard view models.
type Service struct {
	source SnapshotSource
}

func NewService(source SnapshotSource) *Service {
	return &Service{source: source}
}

// EntityInfo describes one selectable business unit.
type EntityInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// EntityList is the selector payload plus snapshot freshness.
type EntityList struct {
	Entities   []EntityInfo `json:"entities"`
	SnapshotAt time.Time    `json:"snapshot_at"`
	Source     string       `json:"source"`
}

// Entities lists the business units present in the snapshot, in registry
// order, with the combined scope first.
func (s *Service) Entities(ctx context.Context) (EntityList, error) {
	snap, err := s.source.Current(ctx)
	if err != nil {
		return EntityList{}, err
	}
	list := EntityList{
		SnapshotAt: snap.GeneratedAt,
		Source:     snap.Source,
		Entities:   []EntityInfo{{Code: "", Name: "Alle bedrijven"}},
	}
	for _, ent := range snapshot.Entities {
		if _, ok := snap.Entities[ent.Code]; ok {
			list.Entities = append(list.Entities, EntityInfo{Code: ent.Code, Name: ent.Name})
		}
	}
	return list, nil
}

// MonthFigures is one month in an overview or trend series.
type MonthFigures struct {
	Period  string  `json:"period"`
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
	Costs   float64 `json:"costs"`
	Result  float64 `json:"result"`
}

// Delta compares a figure with a reference month.
type Delta struct {
	Period string  `json:"period"`
	Amount float64 `json:"amount"`
	Pct    float64 `json:"pct"`
}

// EntityResult is one business unit's contribution in the combined view.
type EntityResult struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Revenue float64 `json:"revenue"`
	Result  float64 `json:"result"`
}

// Overview is the landing page view model.
type Overview struct {
	Entity         string         `json:"entity"`
	EntityName     string         `json:"entity_name"`
	Period         string         `json:"period"`
	PeriodLabel    string         `json:"period_label"`
	Revenue        float64        `json:"revenue"`
	Costs          float64        `json:"costs"`
	Result         float64        `json:"result"`
	MarginPct      float64        `json:"margin_pct"`
	VsPrevious     *Delta         `json:"vs_previous,omitempty"`
	VsLastYear     *Delta         `json:"vs_last_year,omitempty"`
	YearToDate     MonthFigures   `json:"year_to_date"`
	Trend          []MonthFigures `json:"trend"`
	ByEntity       []EntityResult `json:"by_entity,omitempty"`
	SnapshotAt     time.Time      `json:"snapshot_at"`
	SnapshotSource string         `json:"snapshot_source"`
}

// Overview assembles the landing page for one entity scope and month.
func (s *Service) Overview(ctx context.Context, entityCode string, period shared.Period) (Overview, error) {
	snap, err := s.source.Current(ctx)
	if err != nil {
		return Overview{}, err
	}
	data, err := snap.Scope(entityCode)
	if err != nil {
		return Overview{}, err
	}

	figures := data.Periods[period.String()]
	view := Overview{
		Entity:         entityCode,
		EntityName:     data.Name,
		Period:         period.String(),
		PeriodLabel:    period.Label(),
		Revenue:        figures.Revenue,
		Costs:          figures.Costs,
		Result:         figures.Result(),
		MarginPct:      figures.MarginPct(),
		SnapshotAt:     snap.GeneratedAt,
		SnapshotSource: snap.Source,
	}

	view.VsPrevious = revenueDelta(data, period, period.Previous())
	view.VsLastYear = revenueDelta(data, period, period.AddMonths(-12))

	ytd := MonthFigures{Period: period.String()[:4], Label: "Jaar tot en met " + period.Label()}
	for month := time.January; month <= period.Month; month++ {
		f := data.Periods[shared.Period{Year: period.Year, Month: month}.String()]
		ytd.Revenue += f.Revenue
		ytd.Costs += f.Costs
		ytd.Result += f.Result()
	}
	view.YearToDate = ytd

	for i := 5; i >= 0; i-- {
		p := period.AddMonths(-i)
		f := data.Periods[p.String()]
		view.Trend = append(view.Trend, MonthFigures{
			Period:  p.String(),
			Label:   p.ShortLabel(),
			Revenue: f.Revenue,
			Costs:   f.Costs,
			Result:  f.Result(),
		})
	}

	if entityCode == "" {
		for _, ent := range snapshot.Entities {
			entData, ok := snap.Entities[ent.Code]
			if !ok {
				continue
			}
			f := entData.Periods[period.String()]
			view.ByEntity = append(view.ByEntity, EntityResult{
				Code:    ent.Code,
				Name:    ent.Name,
				Revenue: f.Revenue,
				Result:  f.Result(),
			})
		}
	}
	return view, nil
}

func revenueDelta(data *snapshot.EntityData, period, reference shared.Period) *Delta {
	ref, ok := data.Periods[reference.String()]
	if !ok {
		return nil
	}
	current := data.Periods[period.String()]
	delta := &Delta{
		Period: reference.String(),
		Amount: current.Revenue - ref.Revenue,
	}
	if ref.Revenue != 0 {
		delta.Pct = delta.Amount / math.Abs(ref.Revenue) * 100
	}
	return delta
}

// BankView splits bank balances from intercompany (R/C) positions, the
// distinction the holding cares about most.
type BankView struct {
	Entity            string                 `json:"entity"`
	Accounts          []snapshot.BankAccount `json:"accounts"`
	Intercompany      []snapshot.BankAccount `json:"intercompany"`
	TotalBank         float64                `json:"total_bank"`
	TotalIntercompany float64                `json:"total_intercompany"`
}

func (s *Service) Bank(ctx context.Context, entityCode string) (BankView, error) {
	data, err := s.scope(ctx, entityCode)
	if err != nil {
		return BankView{}, err
	}
	view := BankView{Entity: entityCode}
	for _, account := range data.BankAccounts {
		if account.Intercompany() {
			view.Intercompany = append(view.Intercompany, account)
			view.TotalIntercompany += account.Balance
		} else {
			view.Accounts = append(view.Accounts, account)
			view.TotalBank += account.Balance
		}
	}
	sortAccounts(view.Accounts)
	sortAccounts(view.Intercompany)
	return view, nil
}

func sortAccounts(accounts []snapshot.BankAccount) {
	sort.Slice(accounts, func(i, j int) bool {
		return math.Abs(accounts[i].Balance) > math.Abs(accounts[j].Balance)
	})
}

// InvoiceFilter narrows the invoice list.
type InvoiceFilter struct {
	Direction  string // "sale", "purchase" or "" for both
	UnpaidOnly bool
	Partner    string // case-insensitive substring
}

// InvoiceView is the invoice page view model.
type InvoiceView struct {
	Entity        string             `json:"entity"`
	Invoices      []snapshot.Invoice `json:"invoices"`
	Count         int                `json:"count"`
	TotalOpen     float64            `json:"total_open"`
	TotalInvoiced float64            `json:"total_invoiced"`
}

func (s *Service) Invoices(ctx context.Context, entityCode string, filter InvoiceFilter) (InvoiceView, error) {
	data, err := s.scope(ctx, entityCode)
	if err != nil {
		return InvoiceView{}, err
	}
	view := InvoiceView{Entity: entityCode, Invoices: []snapshot.Invoice{}}
	needle := strings.ToLower(strings.TrimSpace(filter.Partner))
	for _, invoice := range data.Invoices {
		switch filter.Direction {
		case "sale":
			if invoice.MoveType != snapshot.MoveTypeSale {
				continue
			}
		case "purchase":
			if invoice.MoveType != snapshot.MoveTypePurchase {
				continue
			}
		}
		if filter.UnpaidOnly && !invoice.Unpaid() {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(invoice.Partner), needle) {
			continue
		}
		view.Invoices = append(view.Invoices, invoice)
		view.TotalInvoiced += invoice.AmountTotal
		if invoice.Unpaid() {
			view.TotalOpen += invoice.AmountResidual
		}
	}
	sort.Slice(view.Invoices, func(i, j int) bool {
		return view.Invoices[i].IssueDate.After(view.Invoices[j].IssueDate)
	})
	view.Count = len(view.Invoices)
	return view, nil
}

// ProductView ranks products by revenue for the running year.
type ProductView struct {
	Entity       string                  `json:"entity"`
	Products     []snapshot.ProductSales `json:"products"`
	TotalRevenue float64                 `json:"total_revenue"`
}

func (s *Service) Products(ctx context.Context, entityCode string, limit int) (ProductView, error) {
	data, err := s.scope(ctx, entityCode)
	if err != nil {
		return ProductView{}, err
	}
	view := ProductView{Entity: entityCode}
	products := make([]snapshot.ProductSales, len(data.Products))
	copy(products, data.Products)
	sort.Slice(products, func(i, j int) bool { return products[i].Revenue > products[j].Revenue })
	for _, product := range products {
		view.TotalRevenue += product.Revenue
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	view.Products = products
	return view, nil
}

// MapView positions this year's customers.
type MapView struct {
	Entity    string                      `json:"entity"`
	Customers []snapshot.CustomerLocation `json:"customers"`
}

func (s *Service) Map(ctx context.Context, entityCode string) (MapView, error) {
	data, err := s.scope(ctx, entityCode)
	if err != nil {
		return MapView{}, err
	}
	customers := make([]snapshot.CustomerLocation, len(data.Customers))
	copy(customers, data.Customers)
	sort.Slice(customers, func(i, j int) bool { return customers[i].Revenue > customers[j].Revenue })
	return MapView{Entity: entityCode, Customers: customers}, nil
}

// CashflowPoint is one month of bank movement.
type CashflowPoint struct {
	Period string  `json:"period"`
	Label  string  `json:"label"`
	In     float64 `json:"in"`
	Out    float64 `json:"out"`
	Net    float64 `json:"net"`
}

// CashflowView is the rolling cash movement series.
type CashflowView struct {
	Entity string          `json:"entity"`
	Months []CashflowPoint `json:"months"`
	NetSum float64         `json:"net_sum"`
}

func (s *Service) Cashflow(ctx context.Context, entityCode string, period shared.Period, months int) (CashflowView, error) {
	data, err := s.scope(ctx, entityCode)
	if err != nil {
		return CashflowView{}, err
	}
	if months <= 0 {
		months = 6
	}
	view := CashflowView{Entity: entityCode}
	for i := months - 1; i >= 0; i-- {
		p := period.AddMonths(-i)
		f := data.Periods[p.String()]
		point := CashflowPoint{
			Period: p.String(),
			Label:  p.ShortLabel(),
			In:     f.CashIn,
			Out:    f.CashOut,
			Net:    f.CashIn - f.CashOut,
		}
		view.Months = append(view.Months, point)
		view.NetSum += point.Net
	}
	return view, nil
}

// costGroupNames translates two-digit cost account prefixes to the labels
// the bookkeeping uses.
var costGroupNames = map[string]string{
	"40": "Personeelskosten",
	"41": "Huisvestingskosten",
	"42": "Vervoerskosten",
	"43": "Kantoorkosten",
	"44": "Marketing & Reclame",
	"45": "Algemene Kosten",
	"46": "Overige Bedrijfskosten",
	"47": "Financiële Lasten",
	"48": "Afschrijvingen",
	"49": "Overige Kosten",
	"70": "Kostprijs Verkopen",
	"71": "Kostprijs Verkopen",
	"72": "Kostprijs Verkopen",
	"73": "Kostprijs Verkopen",
	"74": "Kostprijs Verkopen",
	"75": "Kostprijs Verkopen",
}

func costGroupName(group string) string {
	if name, ok := costGroupNames[group]; ok {
		return name
	}
	return "Groep " + group
}

// CostRow is one cost group with its month-over-month movement.
type CostRow struct {
	Group    string  `json:"group"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Previous float64 `json:"previous"`
	Delta    float64 `json:"delta"`
	SharePct float64 `json:"share_pct"`
}

// CostView is the cost page view model, grouped by account prefix.
type CostView struct {
	Entity        string    `json:"entity"`
	Period        string    `json:"period"`
	Rows          []CostRow `json:"rows"`
	Total         float64   `json:"total"`
	PreviousTotal float64   `json:"previous_total"`
}

// Costs breaks the period's costs down per account group, compared with the
// previous month. Groups that only occur in the previous month keep a row so
// a cost that disappeared stays visible.
func (s *Service) Costs(ctx context.Context, entityCode string, period shared.Period) (CostView, error) {
	data, err := s.scope(ctx, entityCode)
	if err != nil {
		return CostView{}, err
	}
	figures := data.Periods[period.String()]
	previous := data.Periods[period.Previous().String()]

	groups := make(map[string]struct{}, len(figures.CostsByGroup))
	for group := range figures.CostsByGroup {
		groups[group] = struct{}{}
	}
	for group := range previous.CostsByGroup {
		groups[group] = struct{}{}
	}
	ordered := make([]string, 0, len(groups))
	for group := range groups {
		ordered = append(ordered, group)
	}
	sort.Strings(ordered)

	view := CostView{Entity: entityCode, Period: period.String(), Rows: make([]CostRow, 0, len(ordered))}
	for _, group := range ordered {
		amount := figures.CostsByGroup[group]
		prev := previous.CostsByGroup[group]
		view.Rows = append(view.Rows, CostRow{
			Group:    group,
			Name:     costGroupName(group),
			Amount:   amount,
			Previous: prev,
			Delta:    amount - prev,
		})
		view.Total += amount
		view.PreviousTotal += prev
	}
	if view.Total != 0 {
		for i := range view.Rows {
			view.Rows[i].SharePct = view.Rows[i].Amount / view.Total * 100
		}
	}
	return view, nil
}

// BalanceQuadrant is one quarter of the balance sheet layout.
type BalanceQuadrant struct {
	Title    string                    `json:"title"`
	Accounts []snapshot.AccountBalance `json:"accounts"`
	Total    float64                   `json:"total"`
}

// BalanceView lays the balance sheet out as the classic Dutch quadrant:
// vaste and vlottende activa left, vermogen and schulden right.
type BalanceView struct {
	Entity            string          `json:"entity"`
	FixedAssets       BalanceQuadrant `json:"fixed_assets"`
	CurrentAssets     BalanceQuadrant `json:"current_assets"`
	EquityLiabilities BalanceQuadrant `json:"equity_liabilities"`
	TotalAssets       float64         `json:"total_assets"`
	TotalLiabilities  float64         `json:"total_liabilities"`
	InBalance         bool            `json:"in_balance"`
}

func (s *Service) Balance(ctx context.Context, entityCode string) (BalanceView, error) {
	data, err := s.scope(ctx, entityCode)
	if err != nil {
		return BalanceView{}, err
	}
	view := BalanceView{
		Entity:            entityCode,
		FixedAssets:       BalanceQuadrant{Title: "Vaste activa"},
		CurrentAssets:     BalanceQuadrant{Title: "Vlottende activa"},
		EquityLiabilities: BalanceQuadrant{Title: "Vermogen en schulden"},
	}
	for _, account := range data.Accounts {
		switch {
		case strings.HasPrefix(account.Code, "0"):
			view.FixedAssets.Accounts = append(view.FixedAssets.Accounts, account)
			view.FixedAssets.Total += account.Balance
		case account.Asset():
			view.CurrentAssets.Accounts = append(view.CurrentAssets.Accounts, account)
			view.CurrentAssets.Total += account.Balance
		default:
			// Liability balances are credit-side; flip the sign so the
			// quadrant shows them positive.
			flipped := account
			flipped.Balance = -account.Balance
			view.EquityLiabilities.Accounts = append(view.EquityLiabilities.Accounts, flipped)
			view.EquityLiabilities.Total += flipped.Balance
		}
	}
	sortQuadrant(&view.FixedAssets)
	sortQuadrant(&view.CurrentAssets)
	sortQuadrant(&view.EquityLiabilities)
	view.TotalAssets = view.FixedAssets.Total + view.CurrentAssets.Total
	view.TotalLiabilities = view.EquityLiabilities.Total
	view.InBalance = math.Abs(view.TotalAssets-view.TotalLiabilities) < 0.01
	return view, nil
}

func sortQuadrant(q *BalanceQuadrant) {
	sort.Slice(q.Accounts, func(i, j int) bool { return q.Accounts[i].Code < q.Accounts[j].Code })
}

func (s *Service) scope(ctx context.Context, entityCode string) (*snapshot.EntityData, error) {
	snap, err := s.source.Current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Scope(entityCode)
}
