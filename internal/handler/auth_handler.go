package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/focusflow/backend/internal/auth"
	"github.com/focusflow/backend/internal/middleware"
	"github.com/focusflow/backend/internal/model"
	"github.com/focusflow/backend/internal/user"
)

// stateCookieName はOAuthフローのCSRF対策stateを保持するCookie名。
const stateCookieName = "oauth_state"

// stateCookieMaxAge はstate Cookieの有効期間（秒）。
// 認可画面での滞在を考慮して10分とする。
const stateCookieMaxAge = 600

// AuthServiceInterface は認証サービスのインターフェース。
type AuthServiceInterface interface {
	BeginLogin() (*auth.LoginStart, error)
	CompleteLogin(ctx context.Context, code, receivedState, expectedState string) (*auth.LoginResult, error)
	LoginWithIDToken(ctx context.Context, idToken, origin string) (*auth.LoginResult, error)
	LoginWithPassword(ctx context.Context, username, password string) (*auth.LoginResult, error)
}

// UserGetter は認証済みユーザーの取得インターフェース。
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandlerConfig はAuthHandlerの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	authService AuthServiceInterface
	users       UserGetter
	config      AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authService AuthServiceInterface, users UserGetter, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
		config:      config,
	}
}

// GoogleLogin はGET /api/auth/google/loginを処理する。
// stateを生成してHttpOnly Cookieに保存し、認可URLをJSONで返す。
// リダイレクトはSPA側が行う。
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	start, err := h.authService.BeginLogin()
	if err != nil {
		slog.Error("failed to begin login", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    start.State,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": start.AuthURL,
		"state":    start.State,
	})
}

// GoogleCallback はGET /api/auth/google/callbackを処理する。
// クエリのstateとCookieのstateを照合してから認可コードを交換する。
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	receivedState := r.URL.Query().Get("state")

	expectedState := ""
	if c, err := r.Cookie(stateCookieName); err == nil {
		expectedState = c.Value
	}

	// state Cookieは一度使ったら削除する
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	result, err := h.authService.CompleteLogin(r.Context(), code, receivedState, expectedState)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(result.Token, result.User))
}

// mobileLoginRequest はPOST /api/auth/mobile/googleのリクエストボディ。
type mobileLoginRequest struct {
	IDToken string `json:"id_token"`
	Origin  string `json:"origin"` // "web" または "ios"。省略時はweb
}

// MobileGoogleLogin はPOST /api/auth/mobile/googleを処理する。
// ネイティブアプリが直接取得したIDトークンを検証してログインさせる。
func (h *AuthHandler) MobileGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req mobileLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("id_tokenは必須です"))
		return
	}

	result, err := h.authService.LoginWithIDToken(r.Context(), req.IDToken, req.Origin)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(result.Token, result.User))
}

// passwordLoginRequest はPOST /api/auth/loginのリクエストボディ。
// emailとusernameはどちらか一方を指定する。
type passwordLoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// PasswordLogin はPOST /api/auth/loginを処理する。
func (h *AuthHandler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req passwordLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}
	login := req.Email
	if login == "" {
		login = req.Username
	}
	if login == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("emailとpasswordは必須です"))
		return
	}

	result, err := h.authService.LoginWithPassword(r.Context(), login, req.Password)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(result.Token, result.User))
}

// Me はGET /api/auth/meを処理する。認証済みユーザー自身の情報を返す。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		slog.Error("failed to get user", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// Logout はPOST /api/auth/logoutを処理する。
// トークンはステートレスなためサーバー側の状態は持たない。
// クライアントが保存済みトークンを破棄することでログアウトが完了する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ログアウトしました。",
	})
}

// writeLoginError はログインフローのエラーをHTTPレスポンスに変換する。
// プロバイダー起因の失敗の詳細はログにのみ残し、クライアントには汎用メッセージを返す。
func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrStateMismatch):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStateError())
	case errors.Is(err, auth.ErrProviderUnavailable):
		slog.Error("identity provider unavailable", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewProviderUnavailableError())
	case errors.Is(err, auth.ErrTokenExchangeFailed),
		errors.Is(err, auth.ErrProfileFetchFailed),
		errors.Is(err, auth.ErrInvalidIDToken):
		slog.Warn("authentication failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthFailedError())
	case errors.Is(err, user.ErrNotWhitelisted):
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewNotWhitelistedError())
	case errors.Is(err, user.ErrProviderConflict):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewProviderConflictError())
	case errors.Is(err, user.ErrInvalidCredentials):
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
	case errors.Is(err, user.ErrAccountDeactivated):
		// 退会済みであることはクライアントに漏らさない
		slog.Warn("sign-in attempt on deactivated account")
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	default:
		slog.Error("login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
