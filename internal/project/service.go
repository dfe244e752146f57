// Package project はプロジェクト管理のドメインロジックを提供する。
package project

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
	// ErrNotFound はプロジェクトが存在しないか、他ユーザーの所有であることを示す。
	// 所有者以外には存在自体を漏らさない。
	ErrNotFound = errors.New("project not found")

	// ErrValidation は入力検証エラーを示す。
	ErrValidation = errors.New("validation error")
)

// Service はプロジェクトに関するビジネスロジックを提供する。
type Service struct {
	projects  repository.ProjectRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(projects repository.ProjectRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		projects:  projects,
		sanitizer: sanitizer,
	}
}

// CreateInput はプロジェクト作成の入力。
type CreateInput struct {
	Name        string
	Description string
}

// Create はプロジェクトを作成する。説明文はサニタイズして保存する。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Project, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	now := time.Now()
	project := &model.Project{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        input.Name,
		Description: s.sanitizer.Sanitize(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	slog.Info("project created",
		slog.String("project_id", project.ID),
		slog.String("user_id", userID),
	)
	return project, nil
}

// Get は指定プロジェクトを取得する。所有者以外にはErrNotFoundを返す。
func (s *Service) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, ErrNotFound
	}
	return project, nil
}

// List はユーザーのプロジェクト一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Project, error) {
	projects, err := s.projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// UpdateInput はプロジェクト更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name        *string
	Description *string
}

// Update はプロジェクトを更新する。
func (s *Service) Update(ctx context.Context, userID, projectID string, input UpdateInput) (*model.Project, error) {
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = s.sanitizer.Sanitize(*input.Description)
	}

	project.UpdatedAt = time.Now()
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// Delete はプロジェクトを削除する。所属タスクはプロジェクト未所属になる（DB側でSET NULL）。
func (s *Service) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}
