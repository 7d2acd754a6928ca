package verify

import "github.com/go-chi/chi/v5"

// Routes is mounted at /api/verify.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{flow}", h.ServeState)
	r.Post("/{flow}/submit", h.HandleSubmit)
	r.Post("/{flow}/select", h.HandleSelect)
	r.Post("/{flow}/not-listed", h.HandleNotListed)
	r.Post("/{flow}/refine", h.HandleRefine)
	r.Post("/{flow}/reset", h.HandleReset)
	return r
}
