package httpapi

import (
	"net/http"
	"strings"

	"churn-insights/internal/report"
)

func (h *Handler) churnData(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.service.ChurnData(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, analysis)
}

func (h *Handler) churnSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, summary)
}

func (h *Handler) churnRecords(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ChurnRecords(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"records": rows,
		"total":   len(rows),
	})
}

func (h *Handler) reactivations(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.service.Reactivations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, analysis)
}

// monthlyReport accepts period, startDate and endDate query parameters. A
// startDate/endDate pair wins over period.
func (h *Handler) monthlyReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := report.Filter{
		Period: report.Period(strings.TrimSpace(query.Get("period"))),
		Start:  strings.TrimSpace(query.Get("startDate")),
		End:    strings.TrimSpace(query.Get("endDate")),
	}
	rep, err := h.service.Build(r.Context(), report.Options{
		Filter:        filter,
		SkipNarrative: query.Get("insights") == "false",
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, rep)
}

func (h *Handler) aiInsights(w http.ResponseWriter, r *http.Request) {
	text, err := h.service.Insights(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"insights": text})
}

func (h *Handler) productFeedback(w http.ResponseWriter, r *http.Request) {
	insights, err := h.service.ProductFeedback(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, insights)
}

func (h *Handler) debugSummary(w http.ResponseWriter, r *http.Request) {
	diag, err := h.service.Diagnostics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, diag)
}
