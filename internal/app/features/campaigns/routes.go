package campaigns

import (
	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the campaign API under /api/campaigns.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Public reads and counters.
	r.Get("/public", h.ServePublic)
	r.Get("/templates", h.ServeTemplates)
	r.Get("/{id}", h.ServeCampaign)
	r.Post("/{id}/support", h.HandleSupport)
	r.Post("/{id}/oppose", h.HandleOppose)
	r.Post("/{id}/responses", h.HandleRespond)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleCreate)
		pr.Get("/mine", h.ServeMine)
		pr.Post("/templates/{id}/fork", h.HandleFork)
		pr.Put("/{id}", h.HandleUpdate)
		pr.Delete("/{id}", h.HandleDelete)
		pr.Get("/{id}/results", h.ServeResults)
	})

	return r
}
