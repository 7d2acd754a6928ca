// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /user and GET /u/{nickname} on r, which is the
// /api router. Neither needs auth middleware: the first checks the session
// itself and the second is public.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/user", h.ServeUserInfo)
	r.Get("/u/{nickname}", h.ServePublicProfile)
}
