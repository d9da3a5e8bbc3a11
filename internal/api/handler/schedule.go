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

type Schedule struct {
	svc    *core.ScheduleService
	groups *core.GroupService
}

func NewSchedule(svc *core.ScheduleService, groups *core.GroupService) *Schedule {
	return &Schedule{svc: svc, groups: groups}
}

func (h *Schedule) liveGroup(w http.ResponseWriter, r *http.Request) *model.Group {
	name := chi.URLParam(r, "name")
	group, err := h.groups.GetByName(r.Context(), name)
	if err != nil || group.Deleted() {
		response.WriteError(w, http.StatusNotFound, "group not found")
		return nil
	}
	return group
}

func (h *Schedule) ListByGroup(w http.ResponseWriter, r *http.Request) {
	group := h.liveGroup(w, r)
	if group == nil {
		return
	}

	pg := request.ParsePagination(r)

	schedules, hasMore, err := h.svc.ListByGroup(r.Context(), group.ID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(schedules) > 0 {
		nextCursor = schedules[len(schedules)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, schedules, nextCursor, hasMore)
}

func (h *Schedule) Create(w http.ResponseWriter, r *http.Request) {
	group := h.liveGroup(w, r)
	if group == nil {
		return
	}

	var req request.CreateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	schedule := &model.Schedule{
		ID:        platform.NewID(),
		GroupID:   group.ID,
		Name:      req.Name,
		Cron:      req.Cron,
		FromURL:   req.FromURL,
		ToURL:     req.ToURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.svc.Create(r.Context(), schedule); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, schedule)
}

func (h *Schedule) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if schedule.Deleted() {
		response.WriteError(w, http.StatusNotFound, "schedule not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, schedule)
}

func (h *Schedule) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id, time.Now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
