package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/texflow/internal/projectservice"
)

// RouterConfig carries the settings of the /api sub-router.
type RouterConfig struct {
	AuthEnabled  bool
	Token        string
	DefaultOwner string
	// Events, if non-nil, is mounted at GET /events?project=<id>, scoped to
	// projects the caller owns.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *projectservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Stateless preview, no owner needed.
	r.Post("/compile", h.Compile)

	r.Group(func(r chi.Router) {
		r.Use(OwnerMiddleware(cfg.DefaultOwner))

		if cfg.Events != nil {
			r.With(h.eventScope).Get("/events", cfg.Events.ServeHTTP)
		}

		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Use(h.projectScope)

			r.Get("/", h.GetProject)
			r.Get("/tree", h.Tree)
			r.Get("/search", h.Search)
			r.Post("/records", h.CreateRecord)
			r.Post("/uploads", h.Upload)

			r.Route("/records/{recordID}", func(r chi.Router) {
				r.Get("/", h.GetRecord)
				r.Put("/", h.UpdateContent)
				r.Patch("/", h.Rename)
				r.Delete("/", h.DeleteRecord)
				r.Post("/move", h.Move)
				r.Get("/preview", h.Preview)
			})
		})
	})

	return r
}
