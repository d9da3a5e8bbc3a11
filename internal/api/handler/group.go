package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/edvin/transferd/internal/api/request"
	"github.com/edvin/transferd/internal/api/response"
	"github.com/edvin/transferd/internal/core"
	"github.com/edvin/transferd/internal/model"
	"github.com/edvin/transferd/internal/platform"
)

type Group struct {
	svc *core.GroupService
}

func NewGroup(svc *core.GroupService) *Group {
	return &Group{svc: svc}
}

func (h *Group) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	groups, hasMore, err := h.svc.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(groups) > 0 {
		nextCursor = groups[len(groups)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, groups, nextCursor, hasMore)
}

func (h *Group) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGroup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	group := &model.Group{
		ID:          platform.NewID(),
		Name:        req.Name,
		LogInputURL: req.LogInputURL,
		BackupLimit: req.BackupLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.svc.Create(r.Context(), group); err != nil {
		if errors.Is(err, core.ErrGroupExists) {
			response.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, group)
}

func (h *Group) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	group, err := h.svc.GetByName(r.Context(), name)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if group.Deleted() {
		response.WriteError(w, http.StatusNotFound, "group not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, group)
}

func (h *Group) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.svc.Delete(r.Context(), name, time.Now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
