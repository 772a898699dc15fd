package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/bazaar-market/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	formFieldTitle     = "title"
	formFieldDesc      = "description"
	formFieldPrice     = "price"
	formFieldCategory  = "category"
	formFieldCondition = "condition"
	formFieldLocation  = "location"
	formFieldCover     = "cover"
	formFieldBanner    = "banner"
	formFieldGallery   = "gallery"
)

// ListingHandler provides HTTP handlers for listings and the actions
// scoped to a single listing.
type ListingHandler struct {
	listingService *services.ListingService
	offerService   *services.OfferService
	savedService   *services.SavedService
	reportService  *services.ReportService
}

func NewListingHandler(
	listingService *services.ListingService,
	offerService *services.OfferService,
	savedService *services.SavedService,
	reportService *services.ReportService,
) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		offerService:   offerService,
		savedService:   savedService,
		reportService:  reportService,
	}
}

// ListingRouter registers listing routes on the given router.
func ListingRouter(
	r chi.Router,
	listingService *services.ListingService,
	offerService *services.OfferService,
	savedService *services.SavedService,
	reportService *services.ReportService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewListingHandler(listingService, offerService, savedService, reportService)

	r.Get("/", handler.SearchListings)
	r.With(authMiddleware).Post("/", handler.CreateListing)
	r.Route("/{listingID}", func(r chi.Router) {
		r.Get("/", handler.GetListing)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Put("/", handler.UpdateListing)
			r.Delete("/", handler.DeleteListing)
			r.Patch("/status", handler.SetListingStatus)
			r.Get("/offers", handler.ListOffers)
			r.Post("/offers", handler.CreateOffer)
			r.Get("/saved", handler.IsSaved)
			r.Post("/save", handler.ToggleSaved)
			r.Post("/reports", handler.CreateReport)
		})
	})
}

func (h *ListingHandler) SearchListings(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseListingFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.listingService.Search(r.Context(), filter, offset, limit)
	if err != nil {
		writeServiceError(w, err, "failed to list listings")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.Listing]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "listingID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := h.listingService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	price, err := parseOptionalFloat(r.FormValue(formFieldPrice))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}
	draft := services.ListingDraft{
		Title:       r.FormValue(formFieldTitle),
		Description: r.FormValue(formFieldDesc),
		Price:       price,
		Category:    r.FormValue(formFieldCategory),
		Condition:   r.FormValue(formFieldCondition),
		Location:    r.FormValue(formFieldLocation),
	}

	var images services.ListingImages
	if images.Cover, err = formImage(r.MultipartForm, formFieldCover); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if images.Banner, err = formImage(r.MultipartForm, formFieldBanner); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if images.Gallery, err = formImages(r.MultipartForm, formFieldGallery); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.listingService.Create(r.Context(), userID, draft, images)
	if err != nil {
		writeServiceError(w, err, "failed to create listing")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := actorAndListing(w, r)
	if !ok {
		return
	}
	var req ListingUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.listingService.Update(r.Context(), userID, id, services.ListingDraft(req))
	if err != nil {
		writeServiceError(w, err, "failed to update listing")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ListingHandler) SetListingStatus(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := actorAndListing(w, r)
	if !ok {
		return
	}
	var req ListingStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.listingService.SetStatus(r.Context(), userID, id, req.Status)
	if err != nil {
		writeServiceError(w, err, "failed to update listing status")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := actorAndListing(w, r)
	if !ok {
		return
	}

	if err := h.listingService.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, err, "failed to delete listing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := actorAndListing(w, r)
	if !ok {
		return
	}

	offers, err := h.offerService.ListForListing(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err, "failed to list offers")
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (h *ListingHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := actorAndListing(w, r)
	if !ok {
		return
	}
	var req OfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	offer, err := h.offerService.Create(r.Context(), userID, id, req.Price, req.Message)
	if err != nil {
		writeServiceError(w, err, "failed to create offer")
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (h *ListingHandler) IsSaved(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := actorAndListing(w, r)
	if !ok {
		return
	}

	saved, err := h.savedService.IsSaved(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err, "failed to check saved listing")
		return
	}
	writeJSON(w, http.StatusOK, SavedResponse{Saved: saved})
}

func (h *ListingHandler) ToggleSaved(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := actorAndListing(w, r)
	if !ok {
		return
	}

	saved, err := h.savedService.Toggle(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err, "failed to toggle saved listing")
		return
	}
	writeJSON(w, http.StatusOK, SavedResponse{Saved: saved})
}

func (h *ListingHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := actorAndListing(w, r)
	if !ok {
		return
	}
	var req ReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reportService.Create(r.Context(), userID, id, req.Reason)
	if err != nil {
		writeServiceError(w, err, "failed to report listing")
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func actorAndListing(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := parseIDParam(r, "listingID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

func parseListingFilter(r *http.Request) (types.ListingFilter, error) {
	q := r.URL.Query()
	filter := types.ListingFilter{
		Query:     strings.TrimSpace(q.Get("q")),
		Category:  strings.TrimSpace(q.Get("category")),
		Condition: strings.TrimSpace(q.Get("condition")),
		Status:    types.ListingStatus(strings.TrimSpace(q.Get("status"))),
	}

	if raw := strings.TrimSpace(q.Get("user_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return types.ListingFilter{}, errors.New("invalid user id")
		}
		filter.UserID = id
	}

	var err error
	if filter.MinPrice, err = parseOptionalFloat(q.Get("min_price")); err != nil || filter.MinPrice < 0 {
		return types.ListingFilter{}, errors.New("invalid min_price")
	}
	if filter.MaxPrice, err = parseOptionalFloat(q.Get("max_price")); err != nil || filter.MaxPrice < 0 {
		return types.ListingFilter{}, errors.New("invalid max_price")
	}
	return filter, nil
}

type ListingUpdateRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Condition   string  `json:"condition"`
	Location    string  `json:"location"`
}

type ListingStatusRequest struct {
	Status types.ListingStatus `json:"status"`
}

type OfferRequest struct {
	Price   float64 `json:"price"`
	Message string  `json:"message"`
}

type SavedResponse struct {
	Saved bool `json:"saved"`
}

type ReportRequest struct {
	Reason string `json:"reason"`
}
