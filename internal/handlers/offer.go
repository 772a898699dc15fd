package handlers

import (
	"context"
	"net/http"

	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/bazaar-market/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OfferHandler provides HTTP handlers for negotiating a single offer.
type OfferHandler struct {
	offerService *services.OfferService
}

func NewOfferHandler(offerService *services.OfferService) *OfferHandler {
	return &OfferHandler{offerService: offerService}
}

// OfferRouter registers offer routes on the given router. Every route
// requires authentication.
func OfferRouter(r chi.Router, offerService *services.OfferService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewOfferHandler(offerService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListMine)
	r.Route("/{offerID}", func(r chi.Router) {
		r.Get("/", handler.GetOffer)
		r.Post("/accept", handler.Accept)
		r.Post("/reject", handler.Reject)
		r.Post("/counter", handler.Counter)
	})
}

func (h *OfferHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	offers, err := h.offerService.ListForBuyer(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "failed to list offers")
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "failed to fetch offer", h.offerService.Get)
}

func (h *OfferHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "failed to accept offer", h.offerService.Accept)
}

func (h *OfferHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "failed to reject offer", h.offerService.Reject)
}

func (h *OfferHandler) Counter(w http.ResponseWriter, r *http.Request) {
	var req OfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.act(w, r, "failed to counter offer", func(ctx context.Context, actor, id uuid.UUID) (types.Offer, error) {
		return h.offerService.Counter(ctx, actor, id, req.Price, req.Message)
	})
}

func (h *OfferHandler) act(
	w http.ResponseWriter,
	r *http.Request,
	fallback string,
	fn func(ctx context.Context, actor, id uuid.UUID) (types.Offer, error),
) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "offerID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	offer, err := fn(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err, fallback)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}
