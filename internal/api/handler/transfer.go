package handler

import (
	"context"
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

type Transfer struct {
	svc    *core.TransferService
	groups *core.GroupService
}

func NewTransfer(svc *core.TransferService, groups *core.GroupService) *Transfer {
	return &Transfer{svc: svc, groups: groups}
}

func (h *Transfer) liveGroup(w http.ResponseWriter, r *http.Request) *model.Group {
	name := chi.URLParam(r, "name")
	group, err := h.groups.GetByName(r.Context(), name)
	if err != nil || group.Deleted() {
		response.WriteError(w, http.StatusNotFound, "group not found")
		return nil
	}
	return group
}

func (h *Transfer) ListByGroup(w http.ResponseWriter, r *http.Request) {
	group := h.liveGroup(w, r)
	if group == nil {
		return
	}

	pg := request.ParsePagination(r)

	transfers, hasMore, err := h.svc.ListByGroup(r.Context(), group.ID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(transfers) > 0 {
		nextCursor = transfers[len(transfers)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, transfers, nextCursor, hasMore)
}

func (h *Transfer) Create(w http.ResponseWriter, r *http.Request) {
	group := h.liveGroup(w, r)
	if group == nil {
		return
	}

	var req request.CreateTransfer
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	transfer := &model.Transfer{
		ID:        platform.NewID(),
		GroupID:   group.ID,
		Type:      req.Type,
		FromURL:   req.FromURL,
		ToURL:     req.ToURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.svc.Create(r.Context(), transfer); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, transfer)
}

func (h *Transfer) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	transfer, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if transfer.Deleted() {
		response.WriteError(w, http.StatusNotFound, "transfer not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Transfer) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Destroy(r.Context(), id, time.Now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Claim hands the oldest eligible pending transfer to a worker. Responds
// 204 when there is nothing to do.
func (h *Transfer) Claim(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.svc.BeginNextPending(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, core.ErrNoPendingWork) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Transfer) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *Transfer) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *Transfer) Fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Fail)
}

func (h *Transfer) Retry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Retry)
}

func (h *Transfer) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string, now time.Time) error) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(r.Context(), id, time.Now()); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.WriteError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, core.ErrAlreadyFailed),
			errors.Is(err, core.ErrAlreadySucceeded),
			errors.Is(err, core.ErrConcurrentModification):
			response.WriteError(w, http.StatusConflict, err.Error())
		default:
			response.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	transfer, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Transfer) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.MarkProgress
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.MarkProgress(r.Context(), id, req.ProcessedBytes, time.Now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]int64{"processed_bytes": req.ProcessedBytes})
}

func (h *Transfer) ListLogs(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.svc.ListLogs(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, entries)
}

func (h *Transfer) AppendLog(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.AppendTransferLog
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	level := model.LogLevel(req.Level)
	if req.Level == "" {
		level = model.LogLevelInfo
	}

	if err := h.svc.Log(r.Context(), id, req.Message, level, req.Transient, time.Now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusCreated)
}
