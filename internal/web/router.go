package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/handlers"
)

func Router(gdb *gorm.DB, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handlers.Health(gdb))

	r.Group(func(pr chi.Router) {
		pr.Use(handlers.RequirePrincipal)

		// Staff: today's feed and progress
		pr.Get("/instances", handlers.ListInstances(gdb))
		pr.Get("/instances/{id}", handlers.GetInstance(gdb))
		pr.Get("/instances/{id}/qr.png", handlers.InstanceQR(gdb, cfg.PublicBaseURL))
		pr.Get("/i/{code}", handlers.OpenInstanceByCode(gdb))
		pr.Post("/instances/{id}/items/{itemID}", handlers.SetItemProgress(gdb))
		pr.Post("/instances/{id}/connections/{connID}", handlers.SetConnectionProgress(gdb))
		pr.Post("/instances/{id}/complete", handlers.CompleteInstance(gdb))
		pr.Post("/instances/{id}/submit", handlers.SubmitInstance(gdb))

		pr.Route("/admin", func(ar chi.Router) {
			ar.Use(handlers.RequireAdmin)

			ar.Post("/instances", handlers.CreateInstances(gdb))

			// Templates
			ar.Post("/templates", handlers.CreateTemplate(gdb))
			ar.Get("/templates/{id}", handlers.GetTemplate(gdb))
			ar.Post("/templates/{id}/clone", handlers.CloneTemplate(gdb))
			ar.Post("/templates/{id}/delete", handlers.DeleteTemplate(gdb))
			ar.Post("/templates/{id}/items", handlers.AddItem(gdb))
			ar.Post("/items/{id}/connections", handlers.AddConnection(gdb))
			ar.Post("/items/{id}/delete", handlers.DeleteItem(gdb))

			// Reporting
			ar.Get("/submissions", handlers.Submissions(gdb))
			ar.Get("/submissions.csv", handlers.SubmissionsCSV(gdb))
			ar.Get("/submissions.xlsx", handlers.SubmissionsXLSX(gdb))
			ar.Get("/dashboard", handlers.Dashboard(gdb))
		})
	})

	return r
}
