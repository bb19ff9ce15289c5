package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/feedgate/feedgate/internal/shared"
)

// Servicer is the business contract the HTTP layer depends on.
type Servicer interface {
	CreateProduct(ctx context.Context, payload ProductPayload) (ProductRecord, error)
	ImportFeed(ctx context.Context, payload FeedPayload) (ImportResult, error)
	ListProducts(ctx context.Context, itemCode string, page, perPage int) (ProductPage, error)
}

// Handler wires the REST endpoints for products and feed uploads.
type Handler struct {
	logger  *slog.Logger
	service Servicer
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service Servicer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the feed routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/product/", h.handleListProducts)
	r.Post("/product/", h.handleCreateProduct)
	r.Get("/product/{code}", h.handleListByCode)
	r.Post("/feed/upload", h.handleFeedUpload)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	result, err := h.service.ListProducts(r.Context(), "", page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, newPageView(result))
}

func (h *Handler) handleListByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	page, perPage := pageParams(r)
	result, err := h.service.ListProducts(r.Context(), code, page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, newPageView(result))
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var payload ProductPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondDecodeError(w, err)
		return
	}
	rec, err := h.service.CreateProduct(r.Context(), payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, newProductView(rec))
}

func (h *Handler) handleFeedUpload(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil || r.ContentLength == 0 {
		h.respondJSON(w, http.StatusBadRequest, errorBody(map[string]string{"non_field_errors": "a feed payload is required"}))
		return
	}
	var payload FeedPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondDecodeError(w, err)
		return
	}
	result, err := h.service.ImportFeed(r.Context(), payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, newFeedView(result))
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, perPage
}

type errorResponse struct {
	Errors map[string]string `json:"errors"`
}

func errorBody(fields map[string]string) errorResponse {
	return errorResponse{Errors: fields}
}

func (h *Handler) respondDecodeError(w http.ResponseWriter, err error) {
	h.logger.Debug("malformed request body", slog.Any("error", err))
	h.respondJSON(w, http.StatusBadRequest, errorBody(map[string]string{"non_field_errors": "malformed request body"}))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var verrs *ValidationError
	switch {
	case errors.As(err, &verrs):
		h.respondJSON(w, http.StatusBadRequest, errorBody(verrs.Fields))
	case errors.Is(err, shared.ErrPageOutOfRange), errors.Is(err, shared.ErrNotFound):
		h.respondJSON(w, http.StatusNotFound, errorBody(map[string]string{"detail": "not found"}))
	case errors.Is(err, shared.ErrSessionReplayed):
		h.respondJSON(w, http.StatusConflict, errorBody(map[string]string{"session_id": "session already processed"}))
	case errors.Is(err, ErrItemConflict):
		h.respondJSON(w, http.StatusConflict, errorBody(map[string]string{"detail": "concurrent import collision, retry"}))
	default:
		h.logger.Error("request failed", slog.Any("error", err))
		h.respondJSON(w, http.StatusInternalServerError, errorBody(map[string]string{"detail": "internal server error"}))
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}
