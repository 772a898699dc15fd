package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/bazaar-market/apiserver/internal/storage"
	"github.com/bazaar-market/apiserver/internal/store"
	"github.com/bazaar-market/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxMultipartMemory = 32 << 20
	maxImageBytes      = 10 << 20
)

type contextKey string

const contextSubjectKey contextKey = "sub"

func userIDFromContext(ctx context.Context) (uuid.UUID, error) {
	value := ctx.Value(contextSubjectKey)
	switch subject := value.(type) {
	case uuid.UUID:
		if subject == uuid.Nil {
			return uuid.Nil, errors.New("invalid subject")
		}
		return subject, nil
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(subject))
		if err != nil || parsed == uuid.Nil {
			return uuid.Nil, errors.New("invalid subject")
		}
		return parsed, nil
	default:
		return uuid.Nil, errors.New("missing subject")
	}
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is the paginated list response payload.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service or store error to a response. Unknown
// errors are logged and reported with fallback.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrBanned):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrAlreadyExists),
		errors.Is(err, services.ErrListingHasAcceptedOffer),
		errors.Is(err, types.ErrIllegalTransition),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, storage.ErrObjectExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrSelfMessage),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrMissingField),
		errors.Is(err, services.ErrTooFewImages),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrOwnListing),
		errors.Is(err, services.ErrListingUnavailable),
		errors.Is(err, services.ErrOfferExpired):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("handlers: %s: %v", fallback, err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errors.New("invalid " + strings.TrimSuffix(name, "ID") + " id")
	}
	return id, nil
}

func parseOptionalFloat(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, errors.New("number must be finite")
	}
	return parsed, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
