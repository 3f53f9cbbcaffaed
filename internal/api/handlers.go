package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/folderservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *folderservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *folderservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListFolders handles GET /api/folders/.
//
//	@Summary		List every folder as a flat record list
//	@Tags			folders
//	@Produce		json
//	@Param			If-None-Match	header	string	false	"ETag from a previous listing"
//	@Success		200		{array}		FolderRecord
//	@Success		304		"Not modified"
//	@Security		BearerAuth
//	@Router			/folders/ [get]
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("list folders failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	body, err := json.Marshal(records)
	if err != nil {
		slog.Error("encode folders failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	etag := checksum.ETag(body)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

// Tree handles GET /api/folders/tree.
//
//	@Summary		Get the folders as a nested forest
//	@Tags			folders
//	@Produce		json
//	@Success		200		{array}		FolderNode
//	@Security		BearerAuth
//	@Router			/folders/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	forest, err := h.svc.Tree(r.Context())
	if err != nil {
		slog.Error("folder tree failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

// CreateFolder handles POST /api/folders/.
//
//	@Summary		Create a folder
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFolderRequest	true	"Folder to create"
//	@Success		201		{object}	FolderRecord
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/ [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Create(r.Context(), folderservice.CreateInput{
		Name:     req.Name,
		ParentID: req.ParentID,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalid) {
			writeJSON(w, http.StatusBadRequest, errorBody(strings.TrimPrefix(err.Error(), apperr.ErrInvalid.Error()+": ")))
		} else {
			slog.Error("create folder failed", slog.String("name", req.Name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetFolder handles GET /api/folders/{folderID}.
//
//	@Summary		Get a single folder
//	@Tags			folders
//	@Produce		json
//	@Param			folderID	path		string	true	"Folder id"
//	@Success		200			{object}	FolderRecord
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/{folderID} [get]
func (h *Handler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "folderID")
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("get folder failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteFolder handles DELETE /api/folders/{folderID}.
//
//	@Summary		Delete a folder and all of its descendants
//	@Tags			folders
//	@Param			folderID	path	string	true	"Folder id"
//	@Success		204		"Folder deleted"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/{folderID} [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "folderID")
	removed, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrProtected):
			writeJSON(w, http.StatusBadRequest, errorBody("root folder cannot be deleted"))
		case errors.Is(err, apperr.ErrInvalid):
			writeJSON(w, http.StatusBadRequest, errorBody("folder id is required"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		default:
			slog.Error("delete folder failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	slog.Debug("folder deleted", slog.String("id", id), slog.Int("removed", len(removed)))
	w.WriteHeader(http.StatusNoContent)
}
