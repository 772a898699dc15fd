package handlers

import (
	"net/http"
	"strings"

	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

const formFieldAvatar = "avatar"

// ProfileHandler provides HTTP handlers for profiles.
type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// ProfileRouter registers profile routes on the given router.
func ProfileRouter(r chi.Router, profileService *services.ProfileService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewProfileHandler(profileService)

	r.With(authMiddleware).Put("/me", handler.UpdateMe)
	r.Get("/{profileID}", handler.GetProfile)
	r.With(authMiddleware).Post("/{profileID}/ban", handler.setBanned(true))
	r.With(authMiddleware).Post("/{profileID}/unban", handler.setBanned(false))
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "profileID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profileService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateMe accepts either a JSON body or a multipart form carrying an
// optional avatar image.
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var (
		update services.ProfileUpdate
		avatar *services.Upload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		update = services.ProfileUpdate{
			Username: r.FormValue("username"),
			Name:     r.FormValue("name"),
			Phone:    r.FormValue("phone"),
			City:     r.FormValue("city"),
		}
		avatar, err = formImage(r.MultipartForm, formFieldAvatar)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		var req ProfileUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		update = services.ProfileUpdate(req)
	}

	profile, err := h.profileService.Update(r.Context(), userID, update, avatar)
	if err != nil {
		writeServiceError(w, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) setBanned(banned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		target, err := parseIDParam(r, "profileID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		profile, err := h.profileService.SetBanned(r.Context(), userID, target, banned)
		if err != nil {
			writeServiceError(w, err, "failed to update ban")
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

type ProfileUpdateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
}
