package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ahmedwadee/fbrflow/internal/auth"
	"github.com/ahmedwadee/fbrflow/internal/http/importcsv"
	"github.com/ahmedwadee/fbrflow/internal/http/invoice"
	"github.com/ahmedwadee/fbrflow/internal/http/login"
	"github.com/ahmedwadee/fbrflow/internal/http/logs"
	"github.com/ahmedwadee/fbrflow/internal/http/queue"
	"github.com/ahmedwadee/fbrflow/internal/http/reference"
)

func New(
	authSvc *auth.Service,
	loginV1 *login.Handler,
	invoicesV1 *invoice.Handler,
	queueV1 *queue.Handler,
	importV1 *importcsv.Handler,
	logsV1 *logs.Handler,
	referenceV1 *reference.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			loginV1.Routes(r)
		})

		// Everything below requires an operator token.
		r.Group(func(r chi.Router) {
			r.Use(authSvc.Middleware)

			r.Route("/invoices", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				invoicesV1.Routes(r)
			})

			r.Route("/queue", func(r chi.Router) {
				queueV1.Routes(r)
			})

			r.Route("/import", importV1.Routes)

			r.Route("/logs", func(r chi.Router) {
				logsV1.Routes(r)
			})

			r.Route("/reference", func(r chi.Router) {
				referenceV1.Routes(r)
			})
		})
	})

	return router
}
