package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/focusflow/backend/internal/model"
	"github.com/focusflow/backend/internal/task"
)

type mockTaskService struct {
	createFunc   func(ctx context.Context, userID string, input task.CreateInput) (*model.Task, error)
	getFunc      func(ctx context.Context, userID, taskID string) (*model.Task, error)
	listFunc     func(ctx context.Context, userID string, status model.TaskStatus, projectID string) ([]*model.Task, error)
	updateFunc   func(ctx context.Context, userID, taskID string, input task.UpdateInput) (*model.Task, error)
	completeFunc func(ctx context.Context, userID, taskID string) (*model.Task, error)
	deleteFunc   func(ctx context.Context, userID, taskID string) error
}

func (m *mockTaskService) Create(ctx context.Context, userID string, input task.CreateInput) (*model.Task, error) {
	return m.createFunc(ctx, userID, input)
}

func (m *mockTaskService) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return m.getFunc(ctx, userID, taskID)
}

func (m *mockTaskService) List(ctx context.Context, userID string, status model.TaskStatus, projectID string) ([]*model.Task, error) {
	return m.listFunc(ctx, userID, status, projectID)
}

func (m *mockTaskService) Update(ctx context.Context, userID, taskID string, input task.UpdateInput) (*model.Task, error) {
	return m.updateFunc(ctx, userID, taskID, input)
}

func (m *mockTaskService) Complete(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return m.completeFunc(ctx, userID, taskID)
}

func (m *mockTaskService) Delete(ctx context.Context, userID, taskID string) error {
	return m.deleteFunc(ctx, userID, taskID)
}

// newTaskRouter はURLパラメータの解決にchiを使うテスト用ルーター。
func newTaskRouter(h *TaskHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/tasks", h.List)
	r.Post("/api/tasks", h.Create)
	r.Get("/api/tasks/{taskID}", h.Get)
	r.Patch("/api/tasks/{taskID}", h.Update)
	r.Delete("/api/tasks/{taskID}", h.Delete)
	r.Post("/api/tasks/{taskID}/complete", h.Complete)
	return r
}

func testTask() *model.Task {
	now := time.Now()
	return &model.Task{
		ID:             "task-1",
		UserID:         "user-1",
		Title:          "牛乳を買う",
		Status:         model.TaskStatusTodo,
		Priority:       model.TaskPriorityMedium,
		EnergyRequired: model.EnergyLow,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateTask(t *testing.T) {
	svc := &mockTaskService{
		createFunc: func(ctx context.Context, userID string, input task.CreateInput) (*model.Task, error) {
			if userID != "user-1" {
				t.Errorf("Expected userID 'user-1', got '%s'", userID)
			}
			if input.Title != "牛乳を買う" {
				t.Errorf("Unexpected title: %s", input.Title)
			}
			if input.DueAt == nil {
				t.Error("Expected due_at to be parsed")
			}
			return testTask(), nil
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	body := `{"title":"牛乳を買う","energy_required":"low","due_at":"2026-09-01T09:00:00Z"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/api/tasks", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse body: %v", err)
	}
	if resp.Status != "todo" {
		t.Errorf("Expected status 'todo', got '%s'", resp.Status)
	}
}

func TestCreateTaskInvalidDueAt(t *testing.T) {
	router := newTaskRouter(NewTaskHandler(&mockTaskService{}))

	body := `{"title":"t","due_at":"tomorrow"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/api/tasks", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestCreateTaskValidationError(t *testing.T) {
	svc := &mockTaskService{
		createFunc: func(ctx context.Context, userID string, input task.CreateInput) (*model.Task, error) {
			return nil, task.ErrValidation
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/api/tasks", `{"title":""}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp.Code != "VALIDATION_ERROR" {
		t.Errorf("Expected code 'VALIDATION_ERROR', got '%s'", resp.Code)
	}
}

func TestCreateTaskProjectNotFound(t *testing.T) {
	svc := &mockTaskService{
		createFunc: func(ctx context.Context, userID string, input task.CreateInput) (*model.Task, error) {
			return nil, task.ErrProjectNotFound
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/api/tasks", `{"title":"t","project_id":"nope"}`))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp.Code != "PROJECT_NOT_FOUND" {
		t.Errorf("Expected code 'PROJECT_NOT_FOUND', got '%s'", resp.Code)
	}
}

func TestListTasksWithFilters(t *testing.T) {
	svc := &mockTaskService{
		listFunc: func(ctx context.Context, userID string, status model.TaskStatus, projectID string) ([]*model.Task, error) {
			if status != model.TaskStatusTodo {
				t.Errorf("Expected status filter 'todo', got '%s'", status)
			}
			if projectID != "proj-1" {
				t.Errorf("Expected project filter 'proj-1', got '%s'", projectID)
			}
			return []*model.Task{testTask()}, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/api/tasks?status=todo&project_id=proj-1", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp []taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse body: %v", err)
	}
	if len(resp) != 1 {
		t.Errorf("Expected 1 task, got %d", len(resp))
	}
}

func TestListTasksEmptyReturnsArray(t *testing.T) {
	svc := &mockTaskService{
		listFunc: func(ctx context.Context, userID string, status model.TaskStatus, projectID string) ([]*model.Task, error) {
			return nil, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/api/tasks", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	// nullではなく[]を返す
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("Expected empty array, got %q", body)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	svc := &mockTaskService{
		getFunc: func(ctx context.Context, userID, taskID string) (*model.Task, error) {
			return nil, task.ErrNotFound
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/api/tasks/task-x", ""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp.Code != "TASK_NOT_FOUND" {
		t.Errorf("Expected code 'TASK_NOT_FOUND', got '%s'", resp.Code)
	}
}

func TestUpdateTaskClearDueAt(t *testing.T) {
	svc := &mockTaskService{
		updateFunc: func(ctx context.Context, userID, taskID string, input task.UpdateInput) (*model.Task, error) {
			if !input.ClearDueAt {
				t.Error("Expected ClearDueAt to be set for empty due_at")
			}
			return testTask(), nil
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("PATCH", "/api/tasks/task-1", `{"due_at":""}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateTaskStatusChange(t *testing.T) {
	svc := &mockTaskService{
		updateFunc: func(ctx context.Context, userID, taskID string, input task.UpdateInput) (*model.Task, error) {
			if input.Status == nil || *input.Status != model.TaskStatusInProgress {
				t.Errorf("Expected status 'in_progress', got %v", input.Status)
			}
			if input.Title != nil {
				t.Error("Expected title to be unchanged")
			}
			updated := testTask()
			updated.Status = model.TaskStatusInProgress
			return updated, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("PATCH", "/api/tasks/task-1", `{"status":"in_progress"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestCompleteTask(t *testing.T) {
	now := time.Now()
	svc := &mockTaskService{
		completeFunc: func(ctx context.Context, userID, taskID string) (*model.Task, error) {
			if taskID != "task-1" {
				t.Errorf("Expected taskID 'task-1', got '%s'", taskID)
			}
			done := testTask()
			done.Status = model.TaskStatusDone
			done.CompletedAt = &now
			return done, nil
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/api/tasks/task-1/complete", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse body: %v", err)
	}
	if resp.Status != "done" || resp.CompletedAt == nil {
		t.Errorf("Expected completed task, got %+v", resp)
	}
}

func TestDeleteTask(t *testing.T) {
	svc := &mockTaskService{
		deleteFunc: func(ctx context.Context, userID, taskID string) error {
			return nil
		},
	}
	router := newTaskRouter(NewTaskHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("DELETE", "/api/tasks/task-1", ""))

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
}

func TestTaskHandlersRequireAuthContext(t *testing.T) {
	router := newTaskRouter(NewTaskHandler(&mockTaskService{}))

	req := httptest.NewRequest("GET", "/api/tasks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without auth context, got %d", rec.Code)
	}
}
