package closehttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers the close review endpoints onto the router. Login
// attempts are rate limited per address.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	loginLimiter := httprate.Limit(5, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/close/status", h.handleStatus)
	r.Group(func(gr chi.Router) {
		gr.Use(loginLimiter)
		gr.Post("/close/login", h.handleLogin)
	})
	r.Post("/close/logout", h.handleLogout)
	r.Get("/close/report", h.handleReport)
	r.Get("/close/export.json", h.handleExportJSON)
	r.Get("/close/export.csv", h.handleExportCSV)
	r.Get("/close/export.txt", h.handleExportText)
}
