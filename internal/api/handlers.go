package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/prompt"
	"github.com/starford/notepress/internal/publisher"
)

// Handler holds API route handlers.
type Handler struct {
	svc Publisher
}

// NewHandler creates a new Handler.
func NewHandler(svc Publisher) *Handler {
	return &Handler{svc: svc}
}

// Taxonomy handles GET /api/taxonomy.
//
//	@Summary		Tags and categories of published posts, most used first
//	@Tags			taxonomy
//	@Produce		json
//	@Success		200	{object}	TaxonomyResponse
//	@Security		BearerAuth
//	@Router			/taxonomy [get]
func (h *Handler) Taxonomy(w http.ResponseWriter, _ *http.Request) {
	tags, cats, err := h.svc.Taxonomy()
	if err != nil {
		slog.Error("taxonomy failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TaxonomyResponse{
		Tags:       nonNilEntries(tags.Entries()),
		Categories: nonNilEntries(cats.Entries()),
	})
}

// Publish handles POST /api/publish.
//
//	@Summary		Publish a note into the site
//	@Tags			publish
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PublishRequest	true	"Note to publish"
//	@Success		200		{object}	PublishResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/publish [post]
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	report, err := h.svc.Publish(r.Context(), publisher.Options{
		SourcePath:  req.SourcePath,
		Title:       req.Title,
		Interaction: prompt.FromValues(req.Tags, req.Categories, req.Excerpt),
		Push:        req.Push,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrEncoding), errors.Is(err, apperr.ErrSerialize):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		default:
			slog.Error("publish failed", slog.String("source", req.SourcePath), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListPosts handles GET /api/posts.
//
//	@Summary		List published posts
//	@Tags			posts
//	@Produce		json
//	@Success		200	{object}	PostListResponse
//	@Security		BearerAuth
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, _ *http.Request) {
	posts, err := h.svc.ListPosts()
	if err != nil {
		slog.Error("list posts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: posts})
}

// GetPost handles GET /api/posts/{name}.
//
//	@Summary		Raw Markdown of a published post
//	@Tags			posts
//	@Produce		text/markdown
//	@Param			name	path		string	true	"Post file name"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{name} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.svc.ReadPost(name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		default:
			slog.Error("read post failed", slog.String("name", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
