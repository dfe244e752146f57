package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/focusflow/backend/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, user_id, project_id, title, description, status, priority,
	energy_required, estimated_minutes, due_at, completed_at, created_at, updated_at`

// scanTask は1行をmodel.Taskに読み込む。
func scanTask(scan func(dest ...any) error) (*model.Task, error) {
	task := &model.Task{}
	var projectID sql.NullString
	var dueAt, completedAt sql.NullTime

	err := scan(
		&task.ID, &task.UserID, &projectID, &task.Title, &task.Description,
		&task.Status, &task.Priority, &task.EnergyRequired, &task.EstimatedMinutes,
		&dueAt, &completedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.ProjectID = projectID.String
	if dueAt.Valid {
		t := dueAt.Time
		task.DueAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	return task, nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}
	return task, nil
}

// ListByUser はユーザーのタスク一覧を作成日時降順で返す。
func (r *PostgresTaskRepo) ListByUser(ctx context.Context, userID string, status model.TaskStatus, projectID string) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if projectID != "" {
		args = append(args, projectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, project_id, title, description, status, priority,
			energy_required, estimated_minutes, due_at, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		task.ID, task.UserID, nullString(task.ProjectID), task.Title, task.Description,
		task.Status, task.Priority, task.EnergyRequired, task.EstimatedMinutes,
		nullTime(task.DueAt), nullTime(task.CompletedAt), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update はタスクを上書き更新する。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET
			project_id = $2, title = $3, description = $4, status = $5, priority = $6,
			energy_required = $7, estimated_minutes = $8, due_at = $9, completed_at = $10,
			updated_at = $11
		 WHERE id = $1`,
		task.ID, nullString(task.ProjectID), task.Title, task.Description, task.Status,
		task.Priority, task.EnergyRequired, task.EstimatedMinutes,
		nullTime(task.DueAt), nullTime(task.CompletedAt), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(result, "task", task.ID)
}

// Delete は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireAffected(result, "task", id)
}

// nullTime はnilをNULLに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
