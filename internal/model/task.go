package model

import "time"

// TaskStatus はタスクの進行状態を表す。
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// ValidTaskStatus はタスク状態が定義済みの値かを判定する。
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// TaskPriority はタスクの優先度を表す。
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// ValidTaskPriority は優先度が定義済みの値かを判定する。
func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task はユーザーのタスクを表す。
// DescriptionはサニタイズされたHTMLとして保存される。
type Task struct {
	ID               string
	UserID           string
	ProjectID        string // 未所属の場合は空
	Title            string
	Description      string
	Status           TaskStatus
	Priority         TaskPriority
	EnergyRequired   EnergyLevel // このタスクに必要なエネルギーレベル
	EstimatedMinutes int
	DueAt            *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
