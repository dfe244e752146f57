package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/focusflow/backend/internal/middleware"
	"github.com/focusflow/backend/internal/model"
	"github.com/focusflow/backend/internal/task"
)

// TaskServiceInterface はタスクサービスのインターフェース。
type TaskServiceInterface interface {
	Create(ctx context.Context, userID string, input task.CreateInput) (*model.Task, error)
	Get(ctx context.Context, userID, taskID string) (*model.Task, error)
	List(ctx context.Context, userID string, status model.TaskStatus, projectID string) ([]*model.Task, error)
	Update(ctx context.Context, userID, taskID string, input task.UpdateInput) (*model.Task, error)
	Complete(ctx context.Context, userID, taskID string) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
}

// TaskHandler はタスク関連のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// createTaskRequest はPOST /api/tasksのリクエストボディ。
type createTaskRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ProjectID        string `json:"project_id"`
	Status           string `json:"status"`
	Priority         string `json:"priority"`
	EnergyRequired   string `json:"energy_required"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	DueAt            string `json:"due_at"` // RFC3339
}

// Create はPOST /api/tasksを処理する。
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	dueAt, err := parseOptionalTime(req.DueAt)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("due_atはRFC3339形式で指定してください"))
		return
	}

	t, err := h.service.Create(r.Context(), userID, task.CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		ProjectID:        req.ProjectID,
		Status:           model.TaskStatus(req.Status),
		Priority:         model.TaskPriority(req.Priority),
		EnergyRequired:   model.EnergyLevel(req.EnergyRequired),
		EstimatedMinutes: req.EstimatedMinutes,
		DueAt:            dueAt,
	})
	if err != nil {
		h.writeTaskError(w, "", err)
		return
	}

	writeJSON(w, http.StatusCreated, newTaskResponse(t))
}

// List はGET /api/tasksを処理する。statusとproject_idクエリで絞り込める。
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	status := model.TaskStatus(r.URL.Query().Get("status"))
	projectID := r.URL.Query().Get("project_id")

	tasks, err := h.service.List(r.Context(), userID, status, projectID)
	if err != nil {
		h.writeTaskError(w, "", err)
		return
	}

	writeJSON(w, http.StatusOK, newTaskListResponse(tasks))
}

// Get はGET /api/tasks/{taskID}を処理する。
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	taskID := chi.URLParam(r, "taskID")

	t, err := h.service.Get(r.Context(), userID, taskID)
	if err != nil {
		h.writeTaskError(w, taskID, err)
		return
	}

	writeJSON(w, http.StatusOK, newTaskResponse(t))
}

// updateTaskRequest はPATCH /api/tasks/{taskID}のリクエストボディ。
// 省略したフィールドは変更しない。due_atに空文字を指定すると期限を解除する。
type updateTaskRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	ProjectID        *string `json:"project_id"`
	Status           *string `json:"status"`
	Priority         *string `json:"priority"`
	EnergyRequired   *string `json:"energy_required"`
	EstimatedMinutes *int    `json:"estimated_minutes"`
	DueAt            *string `json:"due_at"`
}

// Update はPATCH /api/tasks/{taskID}を処理する。
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	taskID := chi.URLParam(r, "taskID")

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	input := task.UpdateInput{
		Title:            req.Title,
		Description:      req.Description,
		ProjectID:        req.ProjectID,
		EstimatedMinutes: req.EstimatedMinutes,
	}
	if req.Status != nil {
		s := model.TaskStatus(*req.Status)
		input.Status = &s
	}
	if req.Priority != nil {
		p := model.TaskPriority(*req.Priority)
		input.Priority = &p
	}
	if req.EnergyRequired != nil {
		e := model.EnergyLevel(*req.EnergyRequired)
		input.EnergyRequired = &e
	}
	if req.DueAt != nil {
		if *req.DueAt == "" {
			input.ClearDueAt = true
		} else {
			dueAt, err := parseOptionalTime(*req.DueAt)
			if err != nil {
				middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("due_atはRFC3339形式で指定してください"))
				return
			}
			input.DueAt = dueAt
		}
	}

	t, err := h.service.Update(r.Context(), userID, taskID, input)
	if err != nil {
		h.writeTaskError(w, taskID, err)
		return
	}

	writeJSON(w, http.StatusOK, newTaskResponse(t))
}

// Complete はPOST /api/tasks/{taskID}/completeを処理する。
// 既に完了済みの場合も200を返す（冪等）。
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	taskID := chi.URLParam(r, "taskID")

	t, err := h.service.Complete(r.Context(), userID, taskID)
	if err != nil {
		h.writeTaskError(w, taskID, err)
		return
	}

	writeJSON(w, http.StatusOK, newTaskResponse(t))
}

// Delete はDELETE /api/tasks/{taskID}を処理する。
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	taskID := chi.URLParam(r, "taskID")

	if err := h.service.Delete(r.Context(), userID, taskID); err != nil {
		h.writeTaskError(w, taskID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseOptionalTime は空文字をnilとして扱うRFC3339パーサー。
func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// writeTaskError はタスク操作のエラーをHTTPレスポンスに変換する。
func (h *TaskHandler) writeTaskError(w http.ResponseWriter, taskID string, err error) {
	switch {
	case errors.Is(err, task.ErrValidation):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(err.Error()))
	case errors.Is(err, task.ErrNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
	case errors.Is(err, task.ErrProjectNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProjectNotFoundError(""))
	default:
		slog.Error("task operation failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
