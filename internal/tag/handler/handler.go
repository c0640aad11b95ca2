package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"contactdir/internal/contact/version"
	"contactdir/internal/tag/models"
	dErrors "contactdir/pkg/domain-errors"
	"contactdir/pkg/platform/httputil"
	"contactdir/pkg/requestcontext"
)

// Service is the tag behavior the handler depends on.
type Service interface {
	Create(ctx context.Context, ownerID string, req models.CreateRequest) (*models.Tag, error)
	Get(ctx context.Context, id int64, ownerID string) (*models.Tag, error)
	List(ctx context.Context, ownerID string) ([]*models.Tag, error)
	Rename(ctx context.Context, id int64, ownerID string, req models.CreateRequest, suppliedToken string) (*models.Tag, error)
	Delete(ctx context.Context, id int64, ownerID string) error
	AssignContacts(ctx context.Context, id int64, ownerID string, req models.AssignRequest) (*models.Tag, error)
	RemoveContacts(ctx context.Context, id int64, ownerID string, req models.AssignRequest) (*models.Tag, error)
	Copy(ctx context.Context, sourceID int64, ownerID string, req models.CreateRequest) (*models.Tag, error)
}

// Handler serves tag endpoints. Routes are mounted under
// /v1/owners/{ownerID}/tags.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a tag handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts tag endpoints on the owner-scoped router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{tagID}", h.handleGet)
	r.Put("/{tagID}", h.handleRename)
	r.Delete("/{tagID}", h.handleDelete)
	r.Put("/{tagID}/contacts", h.handleAssignContacts)
	r.Delete("/{tagID}/contacts", h.handleRemoveContacts)
	r.Post("/{tagID}/copy", h.handleCopy)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	tags, err := h.service.List(ctx, ownerID)
	if err != nil {
		h.logFailure(ctx, "list tags failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewListResponse(tags))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	tag, err := h.service.Create(ctx, ownerID, req)
	if err != nil {
		h.logFailure(ctx, "create tag failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("ETag", version.Quote(version.Token(tag.LockVersion)))
	w.Header().Set("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), tag.ID))
	httputil.WriteJSON(w, http.StatusCreated, models.NewTagResponse(tag))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "tagID"), "tag_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tag, err := h.service.Get(ctx, id, ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("ETag", version.Quote(version.Token(tag.LockVersion)))
	httputil.WriteJSON(w, http.StatusOK, models.NewTagResponse(tag))
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "tagID"), "tag_id")
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

	tag, err := h.service.Rename(ctx, id, ownerID, req, version.Unquote(ifMatch))
	if err != nil {
		h.logFailure(ctx, "rename tag failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("ETag", version.Quote(version.Token(tag.LockVersion)))
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "tagID"), "tag_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, id, ownerID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAssignContacts(w http.ResponseWriter, r *http.Request) {
	h.handleLinkChange(w, r, h.service.AssignContacts)
}

func (h *Handler) handleRemoveContacts(w http.ResponseWriter, r *http.Request) {
	h.handleLinkChange(w, r, h.service.RemoveContacts)
}

func (h *Handler) handleLinkChange(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, string, models.AssignRequest) (*models.Tag, error)) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "tagID"), "tag_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.AssignRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := op(ctx, id, ownerID, req); err != nil {
		h.logFailure(ctx, "change tag links failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	// Location points back at the tag so clients can re-read the adjusted
	// contact_count.
	w.Header().Set("Location", strings.TrimSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/contacts"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := chi.URLParam(r, "ownerID")

	id, err := httputil.ParseID(chi.URLParam(r, "tagID"), "tag_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	tag, err := h.service.Copy(ctx, id, ownerID, req)
	if err != nil {
		h.logFailure(ctx, "copy tag failed", ownerID, err)
		httputil.WriteError(w, err)
		return
	}

	base := strings.TrimSuffix(strings.TrimSuffix(r.URL.Path, "/"), fmt.Sprintf("/%d/copy", id))
	w.Header().Set("ETag", version.Quote(version.Token(tag.LockVersion)))
	w.Header().Set("Location", fmt.Sprintf("%s/%d", base, tag.ID))
	httputil.WriteJSON(w, http.StatusCreated, models.NewTagResponse(tag))
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
