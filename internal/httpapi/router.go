// Package httpapi serves the churn dashboards' JSON endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"churn-insights/internal/report"
)

type Handler struct {
	service *report.Service
	logger  *slog.Logger
}

func NewHandler(service *report.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(handler.recoverMiddleware)
	r.Use(handler.loggingMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found", requestIDFromContext(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", requestIDFromContext(r.Context()))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })

	r.Route("/api", func(r chi.Router) {
		r.Get("/churn-data", handler.churnData)
		r.Get("/churn-summary", handler.churnSummary)
		r.Get("/churn-records", handler.churnRecords)
		r.Get("/reactivations", handler.reactivations)
		r.Get("/monthly-report", handler.monthlyReport)
		r.Get("/ai-insights", handler.aiInsights)
		r.Get("/product-feedback", handler.productFeedback)
		r.Get("/debug-summary", handler.debugSummary)
	})
	return r
}
