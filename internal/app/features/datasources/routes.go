package datasources

import "github.com/go-chi/chi/v5"

// MountRoutes registers the provider endpoints on r, which is the /api
// router.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/bills/search", h.ServeBillSearch)
	r.Get("/legiscan", h.ServeLegiScan)
	r.Get("/ballot-officials/{id}", h.ServeBallotOfficials)
}
