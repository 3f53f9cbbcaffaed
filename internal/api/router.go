package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/arbor/internal/folderservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *folderservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Folders. Both /folders and /folders/ reach the collection routes.
	r.Route("/folders", func(r chi.Router) {
		r.Get("/", h.ListFolders)
		r.Post("/", h.CreateFolder)
		r.Get("/tree", h.Tree)
		r.Get("/{folderID}", h.GetFolder)
		r.Delete("/{folderID}", h.DeleteFolder)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
