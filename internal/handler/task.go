package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/service"
	"github.com/dukerupert/flatmate/internal/websocket"
)

type TaskHandler struct {
	tasks  *service.TaskService
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, hub: hub, logger: logger}
}

func (h *TaskHandler) broadcast(t *model.Task, action string) {
	h.hub.Broadcast(t.HouseID, websocket.NewMessage("task", action, t.ID, map[string]any{
		"house_id": t.HouseID,
	}))
}

func writeTasks(w http.ResponseWriter, tasks []model.Task) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) ListHouse(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	houseID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tasks, err := h.tasks.ListHouse(me, houseID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeTasks(w, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	houseID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in service.TaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	task, err := h.tasks.Create(me, houseID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(task, "created")

	writeJSON(w, http.StatusCreated, task)
}

// ListMine serves GET /api/tasks. Query parameters: house_id, status and
// assigned=me.
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	var f service.MyTasksFilter
	if v := q.Get("house_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, h.logger, apperr.Validation("invalid house_id"))
			return
		}
		f.HouseID = &id
	}
	if v := q.Get("status"); v != "" {
		status := model.Status(v)
		f.Status = &status
	}
	switch q.Get("assigned") {
	case "":
	case "me":
		f.AssignedToMe = true
	default:
		writeError(w, r, h.logger, apperr.Validation("assigned must be \"me\""))
		return
	}

	tasks, err := h.tasks.ListMine(me, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeTasks(w, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	task, err := h.tasks.Get(me, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var patch service.TaskPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	task, err := h.tasks.Update(me, id, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(task, "updated")

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	task, err := h.tasks.Complete(me, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(task, "completed")

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	task, err := h.tasks.Delete(me, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(task, "deleted")

	writeMessage(w, "Task deleted")
}
