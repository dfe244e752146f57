package auth

import "errors"

var (
	// ErrStateMismatch はCSRF対策のstateパラメータの不一致を示す。
	// この場合プロバイダーへのネットワーク呼び出しは行われない。
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrTokenExchangeFailed は認可コードのトークン交換の失敗を示す。
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrProfileFetchFailed はプロバイダーからのプロフィール取得の失敗を示す。
	ErrProfileFetchFailed = errors.New("profile fetch failed")

	// ErrInvalidIDToken はIDトークンの署名・発行者・宛先・期限の検証失敗を示す。
	ErrInvalidIDToken = errors.New("invalid ID token")

	// ErrProviderUnavailable はプロバイダーへの到達失敗・タイムアウトを示す。
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)
