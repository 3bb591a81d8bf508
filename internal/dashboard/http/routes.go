package dashhttp

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/entities", h.handleEntities)
		r.Get("/overview", h.handleOverview)
		r.Get("/bank", h.handleBank)
		r.Get("/invoices", h.handleInvoices)
		r.Get("/invoices/export.csv", h.handleInvoiceCSV)
		r.Get("/products", h.handleProducts)
		r.Get("/products/export.csv", h.handleProductCSV)
		r.Get("/map", h.handleMap)
		r.Get("/costs", h.handleCosts)
		r.Get("/costs/export.csv", h.handleCostCSV)
		r.Get("/cashflow", h.handleCashflow)
		r.Get("/cashflow/export.csv", h.handleCashflowCSV)
		r.Get("/balance", h.handleBalance)
	})
}
