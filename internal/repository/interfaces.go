// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/focusflow/backend/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByGoogleID はGoogleのsubject IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	// email、google_id、usernameの一意制約違反はIsUniqueViolationで判別できるエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーのプロフィール・連携情報を更新する。
	Update(ctx context.Context, user *model.User) error

	// UpdateStats はゲーミフィケーション統計のみを更新する。
	UpdateStats(ctx context.Context, userID string, stats model.UserStats) error

	// Deactivate はユーザーを論理削除する（is_active=false）。行は物理削除しない。
	Deactivate(ctx context.Context, userID string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// ListByUser はユーザーのタスク一覧を作成日時降順で返す。
	// statusが空以外の場合は状態で、projectIDが空以外の場合はプロジェクトで絞り込む。
	ListByUser(ctx context.Context, userID string, status model.TaskStatus, projectID string) ([]*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクを上書き更新する。
	Update(ctx context.Context, task *model.Task) error

	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, id string) error
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// ListByUser はユーザーのプロジェクト一覧を作成日時降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Project, error)

	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error

	// Update はプロジェクトを上書き更新する。
	Update(ctx context.Context, project *model.Project) error

	// Delete は指定IDのプロジェクトを削除する。
	Delete(ctx context.Context, id string) error
}
