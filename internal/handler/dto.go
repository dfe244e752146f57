// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/focusflow/backend/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス表現。
// パスワードハッシュ等の内部フィールドは含めない。
type userResponse struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Username    string            `json:"username"`
	FullName    string            `json:"full_name"`
	PictureURL  string            `json:"picture_url,omitempty"`
	Provider    string            `json:"provider"`
	ADHDProfile model.ADHDProfile `json:"adhd_profile"`
	Stats       model.UserStats   `json:"stats"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		PictureURL:  u.PictureURL,
		Provider:    string(u.Provider),
		ADHDProfile: u.ADHDProfile,
		Stats:       u.Stats,
		CreatedAt:   u.CreatedAt,
	}
}

// tokenResponse はログイン成功時のAPIレスポンス。
type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

func newTokenResponse(accessToken string, u *model.User) tokenResponse {
	return tokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		User:        newUserResponse(u),
	}
}

// taskResponse はタスクのAPIレスポンス表現。
type taskResponse struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	Priority         string     `json:"priority"`
	EnergyRequired   string     `json:"energy_required"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func newTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:               t.ID,
		ProjectID:        t.ProjectID,
		Title:            t.Title,
		Description:      t.Description,
		Status:           string(t.Status),
		Priority:         string(t.Priority),
		EnergyRequired:   string(t.EnergyRequired),
		EstimatedMinutes: t.EstimatedMinutes,
		DueAt:            t.DueAt,
		CompletedAt:      t.CompletedAt,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func newTaskListResponse(tasks []*model.Task) []taskResponse {
	result := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		result = append(result, newTaskResponse(t))
	}
	return result
}

// projectResponse はプロジェクトのAPIレスポンス表現。
type projectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func newProjectListResponse(projects []*model.Project) []projectResponse {
	result := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		result = append(result, newProjectResponse(p))
	}
	return result
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
