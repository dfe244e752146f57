package model

import "time"

// Project はタスクをまとめるプロジェクトを表す。
type Project struct {
	ID          string
	UserID      string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
