// Package httpapi exposes the REST surface: task CRUD and direct event
// create/update/delete. Event mutations run through the same overlap
// validator as the socket path.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	tasks  *service.TaskService
	events *service.EventService
	log    *zap.Logger
}

// New constructs the REST server.
func New(tasks *service.TaskService, events *service.EventService, log *zap.Logger) *Server {
	return &Server{tasks: tasks, events: events, log: log}
}

// Routes returns the authenticated API router.
func (s *Server) Routes(signKey []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log), Logging(s.log), BearerAuth(signKey))

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.listTasks)
		r.Post("/", s.createTask)
		r.Patch("/{taskID}", s.renameTask)
		r.Delete("/{taskID}", s.hideTask)
	})
	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.listEvents)
		r.Post("/", s.createEvent)
		r.Put("/{eventID}", s.updateEvent)
		r.Delete("/{eventID}", s.deleteEvent)
	})
	return r
}

// --- DTOs ---

type taskDTO struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Hidden bool      `json:"hidden"`
}

type eventDTO struct {
	ID      uuid.UUID `json:"id"`
	TaskID  uuid.UUID `json:"taskId"`
	Name    string    `json:"name"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

func toTaskDTO(t model.Task) taskDTO {
	return taskDTO{ID: t.ID, Name: t.Name, Hidden: t.Hidden}
}

func toEventDTO(e model.Event) eventDTO {
	return eventDTO{ID: e.ID, TaskID: e.TaskID, Name: e.Name, StartAt: e.StartAt, EndAt: e.EndAt}
}

type createTaskReq struct {
	Name string `json:"name"`
}

type eventReq struct {
	TaskID  uuid.UUID `json:"taskId"`
	Name    string    `json:"name,omitempty"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

// --- Tasks ---

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	includeHidden := r.URL.Query().Get("includeHidden") == "true"
	tasks, err := s.tasks.List(r.Context(), userID, includeHidden)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskDTO(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	var req createTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	t, err := s.tasks.Create(r.Context(), userID, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toTaskDTO(*t))
}

func (s *Server) renameTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	taskID, err := uuid.FromString(chi.URLParam(r, "taskID"))
	if err != nil {
		http.Error(w, "bad task id", http.StatusBadRequest)
		return
	}
	var req createTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if err := s.tasks.Rename(r.Context(), userID, taskID, req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// hideTask soft-deletes: history survives, and a running timer on the task
// is discarded and announced to every device.
func (s *Server) hideTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	taskID, err := uuid.FromString(chi.URLParam(r, "taskID"))
	if err != nil {
		http.Error(w, "bad task id", http.StatusBadRequest)
		return
	}
	if err := s.tasks.Hide(r.Context(), userID, taskID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Events ---

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	events, err := s.events.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toEventDTO(e))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	var req eventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	iv := model.Interval{Start: req.StartAt, End: req.EndAt}
	ev, err := s.events.Create(r.Context(), userID, req.TaskID, req.Name, iv)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toEventDTO(*ev))
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	eventID, err := uuid.FromString(chi.URLParam(r, "eventID"))
	if err != nil {
		http.Error(w, "bad event id", http.StatusBadRequest)
		return
	}
	var req eventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	iv := model.Interval{Start: req.StartAt, End: req.EndAt}
	ev, err := s.events.Update(r.Context(), userID, eventID, req.Name, iv)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toEventDTO(*ev))
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	eventID, err := uuid.FromString(chi.URLParam(r, "eventID"))
	if err != nil {
		http.Error(w, "bad event id", http.StatusBadRequest)
		return
	}
	if err := s.events.Delete(r.Context(), userID, eventID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps service errors to status codes. Overlap conflicts render
// the conflicting entry's identity; other errors stay generic.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var oe *errs.OverlapError
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.As(err, &oe):
		status, msg = http.StatusConflict, oe.Error()
	case errors.Is(err, errs.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrInvalidInterval):
		status, msg = http.StatusBadRequest, "end must be after start"
	case errors.Is(err, errs.ErrFutureEnd):
		status, msg = http.StatusBadRequest, "end time is in the future"
	case errors.Is(err, errs.ErrFutureStart):
		status, msg = http.StatusBadRequest, "start time is in the future"
	case errors.Is(err, errs.ErrTaskMismatch):
		status, msg = http.StatusConflict, "task mismatch"
	case errors.Is(err, errs.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrRateLimited):
		status, msg = http.StatusTooManyRequests, "rate limited"
	default:
		s.log.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
