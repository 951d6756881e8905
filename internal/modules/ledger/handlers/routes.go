package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.HandleGetOrders)
		r.Get("/days", h.HandleGetDays)
		r.Get("/days/{date}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetDay(w, r, chi.URLParam(r, "date"))
		})
	})
}
