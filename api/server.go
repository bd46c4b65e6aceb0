/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/loans/*          Loan lifecycle
  /api/books/*          Book catalog + availability probe
  /api/borrowers/*      Borrower registry + eligibility probe
  /api/authors/*        Author records
  /api/categories/*     Category records
  /api/reports/*        Summary, overdue and utilization reports

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Loan routes
		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Post("/", h.CreateLoan)
			r.Post("/sweep", h.RunSweep)
			r.Get("/{id}", h.GetLoan)
			r.Post("/{id}/return", h.ReturnLoan)
			r.Post("/{id}/renew", h.RenewLoan)
			r.Delete("/{id}", h.DeleteLoan)
		})

		// Book routes
		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Post("/", h.CreateBook)
			r.Get("/{id}", h.GetBook)
			r.Put("/{id}", h.UpdateBook)
			r.Delete("/{id}", h.DeleteBook)
			r.Get("/{id}/availability", h.BookAvailability)
		})

		// Borrower routes
		r.Route("/borrowers", func(r chi.Router) {
			r.Get("/", h.ListBorrowers)
			r.Post("/", h.CreateBorrower)
			r.Get("/{id}", h.GetBorrower)
			r.Put("/{id}", h.UpdateBorrower)
			r.Delete("/{id}", h.DeleteBorrower)
			r.Get("/{id}/eligibility", h.BorrowerEligibility)
		})

		// Author routes
		r.Route("/authors", func(r chi.Router) {
			r.Get("/", h.ListAuthors)
			r.Post("/", h.CreateAuthor)
			r.Delete("/{id}", h.DeleteAuthor)
		})

		// Category routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.ReportSummary)
			r.Get("/overdue", h.ReportOverdue)
			r.Get("/utilization", h.ReportUtilization)
		})
	})

	return r
}
