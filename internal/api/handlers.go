package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fwsync/internal/domain"
	"fwsync/internal/queue"
)

type enqueueReq struct {
	Kinds    []string `json:"sync_kinds"`
	Name     string   `json:"name"`
	Priority int      `json:"priority"`
}

// taskView is a task plus its derived elapsed-time string.
type taskView struct {
	*domain.Task
	Elapsed string `json:"elapsed"`
}

func viewTask(t *domain.Task) taskView {
	return taskView{Task: t, Elapsed: t.ElapsedString()}
}

func viewTasks(tasks []*domain.Task) []taskView {
	out := make([]taskView, len(tasks))
	for i, t := range tasks {
		out[i] = viewTask(t)
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathInt64(r, "deviceID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	kinds := make([]domain.SyncKind, len(req.Kinds))
	for i, k := range req.Kinds {
		kinds[i] = domain.SyncKind(k)
	}

	p := queue.CreateParams{
		DeviceID: deviceID,
		Kinds:    kinds,
		Name:     req.Name,
		Priority: domain.Priority(req.Priority),
	}
	// A full sync runs ahead of routine work.
	for _, k := range kinds {
		if k == domain.KindAll && p.Priority == 0 {
			p.Priority = domain.PriorityHigh
		}
	}

	t, err := s.queue.CreateTask(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewTask(t))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.queue.Task(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewTask(t))
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.queue.Cancel(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewTask(t))
}

func (s *Server) handleDeviceTasks(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathInt64(r, "deviceID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	includeCompleted := r.URL.Query().Get("include_completed") == "true"

	tasks, err := s.queue.DeviceTasks(r.Context(), deviceID, limit, includeCompleted)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewTasks(tasks))
}

func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathInt64(r, "deviceID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if batchID := r.URL.Query().Get("batch_id"); batchID != "" {
		entries, err := s.history.ListByBatch(r.Context(), batchID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.history.ListByDevice(r.Context(), deviceID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := pathInt64(r, "deviceID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := s.devices.Get(r.Context(), deviceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.queue.QueueStatus(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps the queue error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
