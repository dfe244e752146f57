// Package task はタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/focusflow/backend/internal/model"
	"github.com/focusflow/backend/internal/repository"
	"github.com/focusflow/backend/internal/security"
)

var (
	// ErrNotFound はタスクが存在しないか、他ユーザーの所有であることを示す。
	// 所有者以外には存在自体を漏らさない。
	ErrNotFound = errors.New("task not found")

	// ErrProjectNotFound は指定プロジェクトが存在しないか、他ユーザーの所有であることを示す。
	ErrProjectNotFound = errors.New("project not found")

	// ErrValidation は入力検証エラーを示す。
	ErrValidation = errors.New("validation error")
)

// Service はタスクに関するビジネスロジックを提供する。
type Service struct {
	tasks     repository.TaskRepository
	projects  repository.ProjectRepository
	users     repository.UserRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	users repository.UserRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		tasks:     tasks,
		projects:  projects,
		users:     users,
		sanitizer: sanitizer,
	}
}

// CreateInput はタスク作成の入力。
type CreateInput struct {
	Title            string
	Description      string
	ProjectID        string
	Status           model.TaskStatus
	Priority         model.TaskPriority
	EnergyRequired   model.EnergyLevel
	EstimatedMinutes int
	DueAt            *time.Time
}

// Create はタスクを作成する。説明文はサニタイズして保存する。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.Status == "" {
		input.Status = model.TaskStatusTodo
	}
	if input.Priority == "" {
		input.Priority = model.TaskPriorityMedium
	}
	if input.EnergyRequired == "" {
		input.EnergyRequired = model.EnergyMedium
	}
	if err := validateTaskFields(input.Status, input.Priority, input.EnergyRequired); err != nil {
		return nil, err
	}
	if input.EstimatedMinutes < 0 {
		return nil, fmt.Errorf("%w: estimated_minutes must not be negative", ErrValidation)
	}

	if input.ProjectID != "" {
		if err := s.checkProjectOwnership(ctx, userID, input.ProjectID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	task := &model.Task{
		ID:               uuid.New().String(),
		UserID:           userID,
		ProjectID:        input.ProjectID,
		Title:            input.Title,
		Description:      s.sanitizer.Sanitize(input.Description),
		Status:           input.Status,
		Priority:         input.Priority,
		EnergyRequired:   input.EnergyRequired,
		EstimatedMinutes: input.EstimatedMinutes,
		DueAt:            input.DueAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", userID),
	)
	return task, nil
}

// Get は指定タスクを取得する。所有者以外にはErrNotFoundを返す。
func (s *Service) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil || task.UserID != userID {
		return nil, ErrNotFound
	}
	return task, nil
}

// List はユーザーのタスク一覧を返す。statusとprojectIDで絞り込める（空は全件）。
func (s *Service) List(ctx context.Context, userID string, status model.TaskStatus, projectID string) ([]*model.Task, error) {
	if status != "" && !model.ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	tasks, err := s.tasks.ListByUser(ctx, userID, status, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateInput はタスク更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title            *string
	Description      *string
	ProjectID        *string
	Status           *model.TaskStatus
	Priority         *model.TaskPriority
	EnergyRequired   *model.EnergyLevel
	EstimatedMinutes *int
	DueAt            *time.Time
	ClearDueAt       bool
}

// Update はタスクを更新する。
func (s *Service) Update(ctx context.Context, userID, taskID string, input UpdateInput) (*model.Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrValidation)
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.ProjectID != nil {
		if *input.ProjectID != "" {
			if err := s.checkProjectOwnership(ctx, userID, *input.ProjectID); err != nil {
				return nil, err
			}
		}
		task.ProjectID = *input.ProjectID
	}
	if input.Status != nil {
		if !model.ValidTaskStatus(*input.Status) {
			return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, *input.Status)
		}
		task.Status = *input.Status
		if *input.Status != model.TaskStatusDone {
			task.CompletedAt = nil
		}
	}
	if input.Priority != nil {
		if !model.ValidTaskPriority(*input.Priority) {
			return nil, fmt.Errorf("%w: invalid priority %q", ErrValidation, *input.Priority)
		}
		task.Priority = *input.Priority
	}
	if input.EnergyRequired != nil {
		if !model.ValidEnergyLevel(*input.EnergyRequired) {
			return nil, fmt.Errorf("%w: invalid energy level %q", ErrValidation, *input.EnergyRequired)
		}
		task.EnergyRequired = *input.EnergyRequired
	}
	if input.EstimatedMinutes != nil {
		if *input.EstimatedMinutes < 0 {
			return nil, fmt.Errorf("%w: estimated_minutes must not be negative", ErrValidation)
		}
		task.EstimatedMinutes = *input.EstimatedMinutes
	}
	if input.ClearDueAt {
		task.DueAt = nil
	} else if input.DueAt != nil {
		task.DueAt = input.DueAt
	}

	task.UpdatedAt = time.Now()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Complete はタスクを完了状態にし、ユーザーの統計カウンターを更新する。
// 既に完了済みのタスクに対しては何もしない（二重カウントを防ぐ）。
func (s *Service) Complete(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.TaskStatusDone {
		return task, nil
	}

	now := time.Now()
	task.Status = model.TaskStatusDone
	task.CompletedAt = &now
	task.UpdatedAt = now

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	if err := s.incrementStats(ctx, userID); err != nil {
		// 統計の更新失敗はタスク完了自体を妨げない
		slog.Error("failed to update user stats",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("task completed",
		slog.String("task_id", task.ID),
		slog.String("user_id", userID),
	)
	return task, nil
}

// incrementStats はタスク完了時の統計カウンター更新を行う。
// その日最初の完了でストリークを伸ばす。
func (s *Service) incrementStats(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user not found: %s", userID)
	}

	stats := user.Stats
	stats.TasksCompletedToday++
	stats.TotalTasksCompleted++
	if stats.TasksCompletedToday == 1 {
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.LongestStreak {
			stats.LongestStreak = stats.CurrentStreak
		}
	}

	return s.users.UpdateStats(ctx, userID, stats)
}

// Delete はタスクを削除する。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	if _, err := s.Get(ctx, userID, taskID); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// checkProjectOwnership はプロジェクトが指定ユーザーの所有であることを検証する。
func (s *Service) checkProjectOwnership(ctx context.Context, userID, projectID string) error {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to find project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return ErrProjectNotFound
	}
	return nil
}

// validateTaskFields は状態・優先度・エネルギーレベルの値を検証する。
func validateTaskFields(status model.TaskStatus, priority model.TaskPriority, energy model.EnergyLevel) error {
	if !model.ValidTaskStatus(status) {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	if !model.ValidTaskPriority(priority) {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, priority)
	}
	if !model.ValidEnergyLevel(energy) {
		return fmt.Errorf("%w: invalid energy level %q", ErrValidation, energy)
	}
	return nil
}
