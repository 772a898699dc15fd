package handlers

import (
	"net/http"

	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// SavedRouter registers the saved listings route on the given router.
func SavedRouter(r chi.Router, savedService *services.SavedService, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/", func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		listings, err := savedService.List(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err, "failed to list saved listings")
			return
		}
		writeJSON(w, http.StatusOK, listings)
	})
}
