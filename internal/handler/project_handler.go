package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/focusflow/backend/internal/middleware"
	"github.com/focusflow/backend/internal/model"
	"github.com/focusflow/backend/internal/project"
)

// ProjectServiceInterface はプロジェクトサービスのインターフェース。
type ProjectServiceInterface interface {
	Create(ctx context.Context, userID string, input project.CreateInput) (*model.Project, error)
	Get(ctx context.Context, userID, projectID string) (*model.Project, error)
	List(ctx context.Context, userID string) ([]*model.Project, error)
	Update(ctx context.Context, userID, projectID string, input project.UpdateInput) (*model.Project, error)
	Delete(ctx context.Context, userID, projectID string) error
}

// ProjectHandler はプロジェクト関連のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// projectRequest はプロジェクト作成のリクエストボディ。
type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create はPOST /api/projectsを処理する。
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	p, err := h.service.Create(r.Context(), userID, project.CreateInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeProjectError(w, "", err)
		return
	}

	writeJSON(w, http.StatusCreated, newProjectResponse(p))
}

// List はGET /api/projectsを処理する。
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	projects, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.writeProjectError(w, "", err)
		return
	}

	writeJSON(w, http.StatusOK, newProjectListResponse(projects))
}

// Get はGET /api/projects/{projectID}を処理する。
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	projectID := chi.URLParam(r, "projectID")

	p, err := h.service.Get(r.Context(), userID, projectID)
	if err != nil {
		h.writeProjectError(w, projectID, err)
		return
	}

	writeJSON(w, http.StatusOK, newProjectResponse(p))
}

// updateProjectRequest はPATCH /api/projects/{projectID}のリクエストボディ。
// 省略したフィールドは変更しない。
type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update はPATCH /api/projects/{projectID}を処理する。
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	projectID := chi.URLParam(r, "projectID")

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	p, err := h.service.Update(r.Context(), userID, projectID, project.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeProjectError(w, projectID, err)
		return
	}

	writeJSON(w, http.StatusOK, newProjectResponse(p))
}

// Delete はDELETE /api/projects/{projectID}を処理する。
// 所属タスクは削除されず、プロジェクト未所属の状態に戻る。
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	projectID := chi.URLParam(r, "projectID")

	if err := h.service.Delete(r.Context(), userID, projectID); err != nil {
		h.writeProjectError(w, projectID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeProjectError はプロジェクト操作のエラーをHTTPレスポンスに変換する。
func (h *ProjectHandler) writeProjectError(w http.ResponseWriter, projectID string, err error) {
	switch {
	case errors.Is(err, project.ErrValidation):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(err.Error()))
	case errors.Is(err, project.ErrNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProjectNotFoundError(projectID))
	default:
		slog.Error("project operation failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
