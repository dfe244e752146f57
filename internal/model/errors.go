package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, project, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeAuthFailed         = "AUTH_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeNotWhitelisted     = "NOT_WHITELISTED"
	ErrCodeProviderConflict   = "PROVIDER_CONFLICT"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeProjectNotFound    = "PROJECT_NOT_FOUND"
	ErrCodeProviderDown       = "PROVIDER_UNAVAILABLE"
)

// NewUnauthorizedError は認証が必要なエンドポイントでの未認証エラーを生成する。
// どの検証に失敗したか（期限切れ/署名不正/ユーザー消失）はクライアントに区別させない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAuthFailedError はプロバイダー起因の認証失敗を生成する。
// 具体的な失敗種別（交換失敗/プロフィール取得失敗など）はサーバーログにのみ残す。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "最初からログインをやり直してください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードの不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewNotWhitelistedError はアルファ版許可リスト外のサインイン拒否エラーを生成する。
func NewNotWhitelistedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotWhitelisted,
		Message:  "現在アルファ版のため、承認済みユーザーのみご利用いただけます。",
		Category: "auth",
		Action:   "ベータプログラムへの参加をご希望の場合は開発チームまでご連絡ください。",
	}
}

// NewProviderConflictError は別プロバイダーの既存アカウントとの衝突エラーを生成する。
func NewProviderConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderConflict,
		Message:  "このメールアドレスは別の方法で登録済みです。",
		Category: "auth",
		Action:   "登録時と同じログイン方法を使用してください。",
	}
}

// NewInvalidStateError はOAuthコールバックのstate不一致エラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "ログインセッションの有効期限が切れたか、不正なリクエストです。",
		Category: "auth",
		Action:   "最初からログインをやり直してください。",
	}
}

// NewProviderUnavailableError はIDプロバイダーへの到達失敗エラーを生成する。
func NewProviderUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderDown,
		Message:  "認証サービスに接続できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewEmailTakenError はメールアドレスが既に使用されている場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "ログインするか、別のメールアドレスをお使いください。",
	}
}

// NewValidationError は入力値不正のエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。IDは省略可。
func NewProjectNotFoundError(projectID string) *APIError {
	message := "指定されたプロジェクトが見つかりません。"
	if projectID != "" {
		message = fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID)
	}
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  message,
		Category: "project",
		Action:   "プロジェクトIDを確認してください。",
	}
}
