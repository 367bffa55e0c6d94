package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/skilldesk/internal/session"
	"github.com/starford/skilldesk/internal/skillservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *skillservice.Service, sessions *session.Manager, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	sh := NewSessionHandler(sessions, svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Catalogue.
	r.Get("/skills", h.ListSkills)
	r.Get("/skills/{name}", h.GetSkill)
	r.Get("/skills/{name}/tree", h.FileTree)
	r.Get("/skills/{name}/files/*", h.PreviewFile)
	r.Get("/search", h.Search)
	r.Get("/formats", h.Formats)

	// Editor sessions.
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", sh.List)
		r.Post("/", sh.Open)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", sh.Get)
			r.Delete("/", sh.Close)
			r.Put("/body", sh.SetBody)
			r.Put("/metadata", sh.SetMetadata)
			r.Post("/format", sh.Format)
			r.Post("/tab", sh.Tab)
			r.Post("/undo", sh.Undo)
			r.Post("/redo", sh.Redo)
			r.Post("/keys", sh.Key)
			r.Post("/save", sh.Save)
			r.Post("/scroll", sh.Scroll)
			r.Get("/preview", sh.Preview)
			r.Get("/diff", sh.Diff)
			r.Get("/position", sh.Position)
		})
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
