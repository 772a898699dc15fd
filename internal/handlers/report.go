package handlers

import (
	"net/http"
	"strings"

	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/bazaar-market/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// ReportHandler provides the moderation endpoints.
type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ReportRouter registers admin-only report routes on the given router.
func ReportRouter(
	r chi.Router,
	reportService *services.ReportService,
	profileService *services.ProfileService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewReportHandler(reportService)

	r.Use(authMiddleware, requireAdmin(profileService))
	r.Get("/", handler.ListReports)
	r.Delete("/{reportID}", handler.DeleteReport)
	r.Post("/{reportID}/resolve", handler.ResolveReport)
}

func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("q"))
	items, total, err := h.reportService.List(r.Context(), userID, search, offset, limit)
	if err != nil {
		writeServiceError(w, err, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.Report]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reportService.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, err, "failed to delete report")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReportHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reportService.Resolve(r.Context(), userID, id); err != nil {
		writeServiceError(w, err, "failed to resolve report")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
