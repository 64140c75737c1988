package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/handler"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/metrics"
	mw "github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/middleware"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/storage"
)

type Handlers struct {
	Submissions *handler.SubmissionHandler
	Evaluations *handler.EvaluationHandler
	Dashboard   *handler.DashboardHandler
	Health      *handler.HealthHandler
	// Admin is optional; it is only available with the MongoDB store.
	Admin *handler.AdminHandler
}

type Options struct {
	CORSOrigins []string
	Metrics     *metrics.Metrics
	// FilesDir is served under /files when set.
	FilesDir string
}

func New(h Handlers, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.Metrics(opts.Metrics))
	r.Use(mw.CORS(opts.CORSOrigins))

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", opts.Metrics.Handler())
	r.Get("/dashboard", h.Dashboard.Dashboard)

	// Submissions
	r.Get("/form-submissions", h.Submissions.List)
	r.Post("/form-submissions", h.Submissions.Create)

	// Evaluations
	r.Get("/evaluations", h.Evaluations.List)
	r.Get("/evaluations/{projectId}", h.Evaluations.Get)
	r.Post("/evaluations/{projectId}", h.Evaluations.Upsert)

	if h.Admin != nil {
		r.Get("/admin/indexes", h.Admin.ListIndexes)
	}

	if opts.FilesDir != "" {
		fs := http.StripPrefix(storage.FilesRoute, http.FileServer(http.Dir(opts.FilesDir)))
		r.Handle(storage.FilesRoute+"/*", fs)
	}

	return r
}
