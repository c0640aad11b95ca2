package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"contactdir/internal/contact/export"
	"contactdir/internal/contact/metrics"
	"contactdir/internal/contact/models"
	"contactdir/internal/contact/service"
	"contactdir/internal/contact/version"
	dErrors "contactdir/pkg/domain-errors"
	"contactdir/pkg/platform/httputil"
	"contactdir/pkg/requestcontext"
)

// Service is the contact behavior the handler depends on.
type Service interface {
	Create(ctx context.Context, ownerID string, req models.CreateRequest) (*models.Contact, error)
	Get(ctx context.Context, id int64, ownerID string) (*models.Contact, error)
	Update(ctx context.Context, id int64, ownerID string, req models.CreateRequest, suppliedToken string) (*models.Contact, error)
	Delete(ctx context.Context, id int64, ownerID string) error
	Search(ctx context.Context, ownerID string, q models.Query) (models.SearchResponse, error)
	Count(ctx context.Context, ownerID string, req models.SearchRequest) (int, error)
	FetchAll(ctx context.Context, ownerID string, q models.Query) ([]*models.Contact, error)
	BulkCreate(ctx context.Context, ownerID string, req models.BulkCreateRequest, fields []string) (service.BulkResult, error)
	BulkDelete(ctx context.Context, ownerID string, req models.BulkDeleteRequest) (int64, error)
}

// Handler wires contact endpoints to the contact service. Routes are
// mounted under /v1/owners/{ownerID}/contacts.
type Handler struct {
	service         Service
	logger          *slog.Logger
	metrics         *metrics.Metrics
	defaultPageSize int
}

// New constructs a contact handler with its dependencies.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, defaultPageSize int) *Handler {
	return &Handler{
		service:         service,
		logger:          logger,
		metrics:         m,
		defaultPageSize: defaultPageSize,
	}
}

// Register mounts contact endpoints on the owner-scoped router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{contactID}", h.handleGet)
	r.Put("/{contactID}", h.handleUpdate)
	r.Delete("/{contactID}", h.handleDelete)
	r.Post("/search", h.handleSearch)
	r.Post("/count", h.handleCount)
	r.Post("/export", h.handleExport)
	r.Post("/bulk", h.handleBulkCreate)
	r.Delete("/bulk", h.handleBulkDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.service.Create(ctx, ownerID, req)
	if err != nil {
		h.logFailure(ctx, "create contact failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Location", resourceLocation(r.URL.Path, created.ID))
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "contactID"), "contact_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.service.Get(ctx, id, ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	etag := version.Token(c.LockVersion)
	if version.Unquote(r.Header.Get("If-None-Match")) == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", version.Quote(etag))
	w.Header().Set("Last-Modified", c.UpdatedOn.UTC().Format(http.TimeFormat))
	httputil.WriteJSON(w, http.StatusOK, models.NewContactResponse(c))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "contactID"), "contact_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		httputil.WriteError(w, dErrors.NewFieldError("If-Match", "header is required"))
		return
	}

	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.service.Update(ctx, id, ownerID, req, version.Unquote(ifMatch))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeVersionConflict) && h.metrics != nil {
			h.metrics.VersionConflicts.Inc()
		}
		h.logFailure(ctx, "update contact failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("ETag", version.Quote(version.Token(updated.LockVersion)))
	w.Header().Set("Location", resourceLocation(r.URL.Path, 0))
	w.Header().Set("Last-Modified", updated.UpdatedOn.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "contactID"), "contact_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, id, ownerID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ContactsDeleted.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")
	start := time.Now()

	opts, err := models.ParseOptions(r.URL.Query(), h.defaultPageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.SearchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp, err := h.service.Search(ctx, ownerID, models.NewQuery(req, opts))
	if err != nil {
		h.logFailure(ctx, "search failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveSearch(start)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	var req models.SearchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	count, err := h.service.Count(ctx, ownerID, req)
	if err != nil {
		h.logFailure(ctx, "count failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.CountResponse{Count: count})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	opts, err := models.ParseOptions(r.URL.Query(), h.defaultPageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.SearchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	contacts, err := h.service.FetchAll(ctx, ownerID, models.NewQuery(req, opts))
	if err != nil {
		h.logFailure(ctx, "export failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	var (
		body        []byte
		contentType string
		extension   string
	)
	if strings.Contains(r.Header.Get("Accept"), export.ContentTypeXLSX) {
		body, err = export.XLSX(contacts, opts.Fields)
		contentType, extension = export.ContentTypeXLSX, "xlsx"
	} else {
		body, err = export.CSV(contacts, opts.Fields)
		contentType, extension = export.ContentTypeCSV, "csv"
	}
	if err != nil {
		h.logFailure(ctx, "export render failed", ownerID, err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "export render failed"))
		return
	}
	if h.metrics != nil {
		h.metrics.ExportsRendered.Inc()
	}

	filename := export.Filename(requestcontext.Now(ctx), extension)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	var fields []string
	if raw := r.URL.Query().Get("fields"); raw != "" {
		resolved, err := models.ResolveFields(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		fields = resolved
	}

	var req models.BulkCreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.BulkCreate(ctx, ownerID, req, fields)
	if err != nil {
		h.logFailure(ctx, "bulk create failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Partial {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, result.Response)
}

func (h *Handler) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	var req models.BulkDeleteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	deleted, err := h.service.BulkDelete(ctx, ownerID, req)
	if err != nil {
		h.logFailure(ctx, "bulk delete failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ContactsDeleted.Add(float64(deleted))
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

// resourceLocation builds the canonical URL of a contact. A zero id means
// the request path already addresses the resource.
func resourceLocation(path string, id int64) string {
	path = strings.TrimSuffix(path, "/")
	if id == 0 {
		return path
	}
	return fmt.Sprintf("%s/%d", path, id)
}
