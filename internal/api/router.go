package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/bridge"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *bridge.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Pages.
	r.Get("/pages", h.ListPages)
	r.Get("/pages/{book}/{page}", h.GetPage)

	// Recognition passes.
	r.Post("/pages/{book}/{page}/recognize", h.RecognizePage)
	r.Post("/recognize", h.RecognizeAll)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
