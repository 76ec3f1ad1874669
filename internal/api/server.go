package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shiftbot/internal/clock"
	"shiftbot/internal/domain"
	"shiftbot/internal/notify"
	"shiftbot/internal/store"
)

// Messenger is the outbound chat surface the API exposes for manual sends and
// webhook delivery.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
	WebhookHandler() http.HandlerFunc
}

type Server struct {
	r    *chi.Mux
	repo store.Repository
	msg  Messenger
	clk  clock.Clock
}

func NewServer(repo store.Repository, msg Messenger, clk clock.Clock) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, repo: repo, msg: msg, clk: clk}

	r.Get("/health", s.health)
	r.Get("/api/tasks", s.listTasks)
	r.Get(`/api/tasks/{date:\d{4}-\d{2}-\d{2}}`, s.tasksForDate)
	r.Get("/api/tasks/id/{id}", s.getTask)
	r.Post("/api/tasks", s.createTask)
	r.Put("/api/tasks/id/{id}", s.updateTask)
	r.Delete("/api/tasks/id/{id}", s.deleteTask)
	r.Post("/api/telegram/send", s.sendMessage)
	r.Post("/api/telegram/webhook", msg.WebhookHandler())

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type taskReq struct {
	Title              string `json:"title"`
	Details            string `json:"details"`
	Status             string `json:"status"`
	Role               string `json:"role"`
	Duration           string `json:"duration"`
	NotifyMethod       string `json:"notify_method"`
	NoticeInterval     int    `json:"notice_interval"`
	NoticeTime         string `json:"notice_time"`
	FirstMessageMethod string `json:"first_message_method"`
	FirstMessageTime   string `json:"first_message_time"`
}

type taskResp struct {
	ID                   int64   `json:"id"`
	Title                string  `json:"title"`
	Details              string  `json:"details"`
	Role                 string  `json:"role"`
	Duration             string  `json:"duration"`
	Status               string  `json:"status"`
	TaskNumber           int     `json:"task_number"`
	NotifyMethod         string  `json:"notify_method"`
	NoticeInterval       int     `json:"notice_interval"`
	NoticeTime           string  `json:"notice_time"`
	FirstMessageMethod   string  `json:"first_message_method"`
	FirstMessageTime     string  `json:"first_message_time"`
	FirstMessageSent     bool    `json:"first_message_sent"`
	NextNotificationTime *string `json:"next_notification_time"`
	CreationDate         string  `json:"creation_date"`
}

func toResp(t domain.Task) taskResp {
	return taskResp{
		ID: t.ID, Title: t.Title, Details: t.Details,
		Role: string(t.Role), Duration: string(t.Duration), Status: string(t.Status),
		TaskNumber: t.TaskNumber,
		NotifyMethod: string(t.NotifyMethod), NoticeInterval: t.NoticeInterval, NoticeTime: t.NoticeTime,
		FirstMessageMethod: string(t.FirstMessageMethod), FirstMessageTime: t.FirstMessageTime,
		FirstMessageSent:     t.FirstMessageSent,
		NextNotificationTime: t.NextNotificationTime,
		CreationDate:         t.CreationDate,
	}
}

func toRespList(tasks []domain.Task) []taskResp {
	out := make([]taskResp, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toResp(t))
	}
	return out
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	f := store.Filter{Duration: domain.Duration(r.URL.Query().Get("duration"))}
	tasks, err := s.repo.List(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, toRespList(tasks))
}

func (s *Server) tasksForDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	tasks, err := s.repo.ListForDate(r.Context(), date)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, toRespList(tasks))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	t, err := s.repo.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, toResp(t))
}

type createTaskResp struct {
	ID         int64 `json:"id"`
	TaskNumber int   `json:"task_number"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", 400)
		return
	}
	if req.Role == "" || req.Duration == "" {
		http.Error(w, "role and duration are required", 400)
		return
	}

	now := s.clk.Now()
	t := taskFromReq(req)
	t.CreationDate = clock.Format(now)
	t.NextNotificationTime = notify.NextTime(t, now)

	created, err := s.repo.Insert(r.Context(), t)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, createTaskResp{ID: created.ID, TaskNumber: created.TaskNumber})
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	t := taskFromReq(req)
	t.ID = id
	t.NextNotificationTime = notify.NextTime(t, s.clk.Now())

	changed, err := s.repo.Update(r.Context(), t)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !changed {
		http.Error(w, "not found", 404)
		return
	}
	writeJSON(w, 200, map[string]any{"id": id, "message": "task updated"})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	changed, err := s.repo.Delete(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !changed {
		http.Error(w, "not found", 404)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendReq struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.ChatID == 0 || req.Text == "" {
		http.Error(w, "chat_id and text are required", 400)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.msg.Send(ctx, req.ChatID, req.Text); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func taskFromReq(req taskReq) domain.Task {
	status := domain.Status(req.Status)
	if status == "" {
		status = domain.StatusInProgress
	}
	return domain.Task{
		Title:              req.Title,
		Details:            req.Details,
		Role:               domain.Role(req.Role),
		Duration:           domain.Duration(req.Duration),
		Status:             status,
		NotifyMethod:       domain.NotifyMethod(req.NotifyMethod),
		NoticeInterval:     req.NoticeInterval,
		NoticeTime:         req.NoticeTime,
		FirstMessageMethod: domain.FirstMessageMethod(req.FirstMessageMethod),
		FirstMessageTime:   req.FirstMessageTime,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
