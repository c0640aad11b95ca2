package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	contactmodels "contactdir/internal/contact/models"
	"contactdir/internal/searchcache/models"
	dErrors "contactdir/pkg/domain-errors"
	"contactdir/pkg/platform/httputil"
	"contactdir/pkg/requestcontext"
)

// Service is the snapshot behavior the handler depends on.
type Service interface {
	CreateCache(ctx context.Context, ownerID string, req contactmodels.SearchRequest) (*models.Snapshot, error)
	GetCache(ctx context.Context, id int64, ownerID string, opts contactmodels.Options) (contactmodels.SearchResponse, error)
	Count(ctx context.Context, id int64, ownerID string) (int, error)
	DeleteCache(ctx context.Context, id int64, ownerID string) error
}

// Handler serves cached search snapshots. Routes are mounted under
// /v1/owners/{ownerID}/contacts/search/cache.
type Handler struct {
	service         Service
	logger          *slog.Logger
	defaultPageSize int
}

// New constructs a snapshot handler.
func New(service Service, logger *slog.Logger, defaultPageSize int) *Handler {
	return &Handler{service: service, logger: logger, defaultPageSize: defaultPageSize}
}

// Register mounts snapshot endpoints on the owner-scoped router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{cacheID}", h.handleGet)
	r.Delete("/{cacheID}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	var req contactmodels.SearchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	snapshot, err := h.service.CreateCache(ctx, ownerID, req)
	if err != nil {
		h.logFailure(ctx, "create search snapshot failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), snapshot.Search.ID))
	w.Header().Set("X-Total-Count", strconv.Itoa(snapshot.Total))
	httputil.WriteJSON(w, http.StatusCreated, models.NewCacheResponse(snapshot.Search))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "cacheID"), "cache_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	opts, err := contactmodels.ParseOptions(r.URL.Query(), h.defaultPageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp, err := h.service.GetCache(ctx, id, ownerID, opts)
	if err != nil {
		h.logFailure(ctx, "get search snapshot failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	// The header total comes from the count cache, not from the page body.
	total, err := h.service.Count(ctx, id, ownerID)
	if err != nil {
		h.logFailure(ctx, "count search snapshot failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "cacheID"), "cache_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.DeleteCache(ctx, id, ownerID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logFailure(ctx context.Context, msg, ownerID string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.Error(msg,
			"request_id", requestcontext.RequestID(ctx),
			"owner_id", ownerID,
			"error", err,
		)
	}
}
