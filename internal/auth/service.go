// Package auth はGoogle OAuth認証フローとアクセストークン発行を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/focusflow/backend/internal/model"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、身元情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*model.ExternalIdentity, error)
}

// IDTokenVerifier はクライアントが直接取得したIDトークンを検証するインターフェース。
type IDTokenVerifier interface {
	// Verify はIDトークンを検証し、身元情報を返す。
	Verify(ctx context.Context, idToken, origin string) (*model.ExternalIdentity, error)
}

// UserResolver は検証済みの身元情報をローカルユーザーに解決するインターフェース。
type UserResolver interface {
	// ResolveOrCreate は身元情報に対応するユーザーを検索し、存在しなければ作成する。
	ResolveOrCreate(ctx context.Context, ident *model.ExternalIdentity) (*model.User, error)
	// AuthenticateLocal はユーザー名（またはメールアドレス）とパスワードで認証する。
	AuthenticateLocal(ctx context.Context, username, password string) (*model.User, error)
}

// TokenIssuer はアクセストークンを発行するインターフェース。
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// MetricsRecorder はログイン結果のメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordLogin(flow, outcome string)
}

// ログインフローの識別子。メトリクスとログで使用する。
const (
	flowGoogleWeb    = "google_web"
	flowGoogleMobile = "google_mobile"
	flowPassword     = "password"
)

// LoginStart はOAuthフロー開始時にクライアントへ返す情報。
type LoginStart struct {
	AuthURL string
	State   string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token string
	User  *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider OAuthProvider
	verifier IDTokenVerifier
	resolver UserResolver
	issuer   TokenIssuer
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。
func NewService(
	provider OAuthProvider,
	verifier IDTokenVerifier,
	resolver UserResolver,
	issuer TokenIssuer,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		provider: provider,
		verifier: verifier,
		resolver: resolver,
		issuer:   issuer,
		metrics:  metrics,
	}
}

// BeginLogin はOAuthフローを開始する。stateを生成し認証URLを返す。
func (s *Service) BeginLogin() (*LoginStart, error) {
	state, err := GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	return &LoginStart{
		AuthURL: s.provider.GetLoginURL(state),
		State:   state,
	}, nil
}

// CompleteLogin はOAuthコールバックを処理し、アクセストークンを発行する。
// stateの検証はプロバイダーへのネットワーク呼び出しより先に行う。
func (s *Service) CompleteLogin(ctx context.Context, code, receivedState, expectedState string) (*LoginResult, error) {
	if expectedState == "" || receivedState == "" || receivedState != expectedState {
		s.recordLogin(flowGoogleWeb, "state_mismatch")
		return nil, ErrStateMismatch
	}

	ident, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.recordLogin(flowGoogleWeb, "exchange_failed")
		return nil, err
	}

	return s.finishLogin(ctx, flowGoogleWeb, ident)
}

// LoginWithIDToken はクライアントが直接取得したGoogleのIDトークンでログインする。
// モバイルアプリのネイティブサインインで使用する。
func (s *Service) LoginWithIDToken(ctx context.Context, idToken, origin string) (*LoginResult, error) {
	ident, err := s.verifier.Verify(ctx, idToken, origin)
	if err != nil {
		s.recordLogin(flowGoogleMobile, "verify_failed")
		return nil, err
	}

	return s.finishLogin(ctx, flowGoogleMobile, ident)
}

// LoginWithPassword はユーザー名（またはメールアドレス）とパスワードでログインする。
func (s *Service) LoginWithPassword(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.resolver.AuthenticateLocal(ctx, username, password)
	if err != nil {
		s.recordLogin(flowPassword, "failure")
		return nil, err
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.recordLogin(flowPassword, "failure")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.recordLogin(flowPassword, "success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("flow", flowPassword),
	)

	return &LoginResult{Token: token, User: user}, nil
}

// finishLogin は検証済みの身元情報をユーザーに解決し、トークンを発行する。
func (s *Service) finishLogin(ctx context.Context, flow string, ident *model.ExternalIdentity) (*LoginResult, error) {
	user, err := s.resolver.ResolveOrCreate(ctx, ident)
	if err != nil {
		s.recordLogin(flow, "resolve_failed")
		return nil, err
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.recordLogin(flow, "failure")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.recordLogin(flow, "success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("flow", flow),
	)

	return &LoginResult{Token: token, User: user}, nil
}

// recordLogin はメトリクスコレクターが設定されている場合のみ記録する。
func (s *Service) recordLogin(flow, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(flow, outcome)
	}
}
