package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/eduhive-ledger/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics(h.metrics))

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/courses/{id}", func(r chi.Router) {
			r.Post("/purchase", h.PurchaseCourse)
			r.Get("/purchased", h.CheckPurchased)
			r.Get("/lectures", h.GetLectures)
			r.Get("/lectures/{lectureId}/access", h.OpenLecture)
		})

		r.Get("/purchases", h.GetPurchases)
		r.Post("/purchases/batch", h.PurchaseBatch)

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/transactions", h.GetTransactions)
			r.Post("/topup", h.TopUp)
		})

		r.Route("/progress", func(r chi.Router) {
			r.Post("/upsert", h.UpsertProgress)
			r.Get("/course/{id}", h.GetCourseProgress)
			r.Get("/next/{id}", h.GetNextLecture)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(custommiddleware.RequireAdmin)

			r.Get("/topups", h.ListTopUps)
			r.Post("/topups/{id}/approve", h.ApproveTopUp)
			r.Post("/topups/{id}/reject", h.RejectTopUp)
			r.Get("/stats", h.GetStats)
			r.Get("/ledger/audit", h.AuditLedger)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "route_not_found", "no route for "+r.Method+" "+r.URL.Path)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed for "+r.URL.Path)
	})

	return r
}
