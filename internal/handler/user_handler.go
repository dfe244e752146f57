package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/focusflow/backend/internal/middleware"
	"github.com/focusflow/backend/internal/model"
	"github.com/focusflow/backend/internal/user"
)

// UserServiceInterface はユーザーサービスのインターフェース。
type UserServiceInterface interface {
	Register(ctx context.Context, input user.RegisterInput) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, input user.UpdateProfileInput) (*model.User, error)
	UpdateADHDProfile(ctx context.Context, userID string, profile model.ADHDProfile) (*model.User, error)
	Deactivate(ctx context.Context, userID string) error
}

// UserHandler はユーザー関連のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// registerRequest はPOST /api/usersのリクエストボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Register はPOST /api/usersを処理する。ローカルアカウントを登録する。
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	u, err := h.service.Register(r.Context(), user.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(u))
}

// GetMe はGET /api/users/meを処理する。
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	u, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// updateProfileRequest はPATCH /api/users/meのリクエストボディ。
// 省略したフィールドは変更しない。
type updateProfileRequest struct {
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
}

// UpdateMe はPATCH /api/users/meを処理する。
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, user.UpdateProfileInput{
		Username: req.Username,
		FullName: req.FullName,
	})
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// UpdateADHDProfile はPUT /api/users/me/adhd-profileを処理する。
// プロファイル全体を置き換える。
func (h *UserHandler) UpdateADHDProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var profile model.ADHDProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}
	if err := validateADHDProfile(profile); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}

	u, err := h.service.UpdateADHDProfile(r.Context(), userID, profile)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// DeleteMe はDELETE /api/users/meを処理する。アカウントを論理削除する。
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Deactivate(r.Context(), userID); err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "アカウントを削除しました。",
	})
}

// validateADHDProfile はADHDプロファイルの入力値を検証する。
func validateADHDProfile(p model.ADHDProfile) error {
	for _, e := range []model.EnergyLevel{
		p.EnergyPatterns.Morning,
		p.EnergyPatterns.Afternoon,
		p.EnergyPatterns.Evening,
	} {
		if !model.ValidEnergyLevel(e) {
			return errors.New("energy_patternsはlow/medium/highのいずれかを指定してください")
		}
	}
	if p.FocusDuration.Optimal <= 0 || p.FocusDuration.Maximum <= 0 || p.FocusDuration.Minimum <= 0 {
		return errors.New("focus_durationは正の値を指定してください")
	}
	return nil
}

// writeUserError はユーザー操作のエラーをHTTPレスポンスに変換する。
func (h *UserHandler) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrValidation):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(err.Error()))
	case errors.Is(err, user.ErrNotWhitelisted):
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewNotWhitelistedError())
	case errors.Is(err, user.ErrEmailTaken):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewEmailTakenError())
	case errors.Is(err, user.ErrNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
	default:
		slog.Error("user operation failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
