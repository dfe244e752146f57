// Package user はユーザーの解決・登録・プロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/focusflow/backend/internal/config"
	"github.com/focusflow/backend/internal/model"
	"github.com/focusflow/backend/internal/repository"
)

var (
	// ErrNotFound はユーザーが存在しないことを示す。
	ErrNotFound = errors.New("user not found")

	// ErrNotWhitelisted は許可リスト外のメールアドレスによるサインインを示す。
	// この場合ユーザー行は作成されない。
	ErrNotWhitelisted = errors.New("email not whitelisted")

	// ErrProviderConflict は同一メールのローカルアカウントが既に存在し、
	// 紐付けポリシーがconflictの場合に返される。
	ErrProviderConflict = errors.New("account exists with a different provider")

	// ErrInvalidCredentials はユーザー名またはパスワードの不一致を示す。
	// 存在しないユーザーと誤パスワードは区別しない。
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDeactivated は論理削除済みアカウントでのサインイン試行を示す。
	ErrAccountDeactivated = errors.New("account deactivated")

	// ErrEmailTaken は登録時のメールアドレス・ユーザー名の重複を示す。
	ErrEmailTaken = errors.New("email or username already taken")
)

// usernameSuffixLimit は連番によるユーザー名衝突回避の試行上限。
// 超過した場合はランダムなサフィックスにフォールバックする。
const usernameSuffixLimit = 100

// Service はユーザーに関するビジネスロジックを提供する。
type Service struct {
	repo       repository.UserRepository
	whitelist  *Whitelist
	linkPolicy config.AccountLinkPolicy
	avatars    AvatarFetcherService
}

// NewService はServiceを生成する。avatarsはnil可（アバター取得をスキップする）。
func NewService(
	repo repository.UserRepository,
	whitelist *Whitelist,
	linkPolicy config.AccountLinkPolicy,
	avatars AvatarFetcherService,
) *Service {
	return &Service{
		repo:       repo,
		whitelist:  whitelist,
		linkPolicy: linkPolicy,
		avatars:    avatars,
	}
}

// ResolveOrCreate は検証済みの身元情報に対応するユーザーを検索し、存在しなければ作成する。
// 許可リストの判定はユーザー行の作成より先に行う。
// 同一の身元で同時に呼ばれた場合、一意制約違反を検知した側はルックアップを再試行し、
// 両方の呼び出しが同じユーザーを返す。
func (s *Service) ResolveOrCreate(ctx context.Context, ident *model.ExternalIdentity) (*model.User, error) {
	// 1. 許可リスト判定（行作成より先）
	if !s.whitelist.Allowed(ident.Email) {
		slog.Warn("sign-in rejected by whitelist", slog.String("email", ident.Email))
		return nil, ErrNotWhitelisted
	}

	// 2. Google IDで既存ユーザーを検索
	existing, err := s.repo.FindByGoogleID(ctx, ident.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google ID: %w", err)
	}
	if existing != nil {
		if !existing.IsActive {
			return nil, ErrAccountDeactivated
		}
		return s.refreshProfile(ctx, existing, ident)
	}

	// 3. 同一メールの既存アカウントを検索（ローカル登録済みユーザーへの紐付け）
	existing, err = s.repo.FindByEmail(ctx, ident.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		if !existing.IsActive {
			return nil, ErrAccountDeactivated
		}
		if s.linkPolicy == config.LinkPolicyConflict {
			return nil, ErrProviderConflict
		}
		return s.linkGoogleAccount(ctx, existing, ident)
	}

	// 4. 新規ユーザーを作成
	user, err := s.createFromIdentity(ctx, ident)
	if err == nil {
		return user, nil
	}
	if !repository.IsUniqueViolation(err) {
		return nil, err
	}

	// 5. 一意制約違反: 同時サインインに敗れた側。勝者の行を再取得する
	winner, err := s.repo.FindByGoogleID(ctx, ident.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch user after conflict: %w", err)
	}
	if winner == nil {
		winner, err = s.repo.FindByEmail(ctx, ident.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to refetch user after conflict: %w", err)
		}
	}
	if winner == nil {
		return nil, fmt.Errorf("user not found after unique violation")
	}
	return winner, nil
}

// refreshProfile はIdPから取得した最新のプロフィールを既存ユーザーに反映する。
func (s *Service) refreshProfile(ctx context.Context, user *model.User, ident *model.ExternalIdentity) (*model.User, error) {
	changed := false
	if ident.Name != "" && user.FullName != ident.Name {
		user.FullName = ident.Name
		changed = true
	}
	if ident.PictureURL != "" && user.PictureURL != ident.PictureURL {
		user.PictureURL = ident.PictureURL
		s.fetchAvatar(ctx, user)
		changed = true
	}
	if !changed {
		return user, nil
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to refresh profile: %w", err)
	}
	return user, nil
}

// linkGoogleAccount は既存アカウントにGoogle IDを紐付ける。
func (s *Service) linkGoogleAccount(ctx context.Context, user *model.User, ident *model.ExternalIdentity) (*model.User, error) {
	user.GoogleID = ident.Subject
	if user.FullName == "" {
		user.FullName = ident.Name
	}
	if user.PictureURL == "" && ident.PictureURL != "" {
		user.PictureURL = ident.PictureURL
		s.fetchAvatar(ctx, user)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to link google account: %w", err)
	}

	slog.Info("google account linked",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// createFromIdentity は身元情報から新規ユーザーを作成する。
// ADHDプロフィールはデフォルト値、ゲーミフィケーション統計はゼロで初期化する。
func (s *Service) createFromIdentity(ctx context.Context, ident *model.ExternalIdentity) (*model.User, error) {
	username, err := s.deriveUsername(ctx, ident.Email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:          uuid.New().String(),
		Email:       ident.Email,
		Username:    username,
		GoogleID:    ident.Subject,
		Provider:    model.ProviderGoogle,
		FullName:    ident.Name,
		PictureURL:  ident.PictureURL,
		IsActive:    true,
		ADHDProfile: model.DefaultADHDProfile(),
		Stats:       model.UserStats{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.fetchAvatar(ctx, user)

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("provider", string(model.ProviderGoogle)),
	)
	return user, nil
}

// deriveUsername はメールアドレスのローカル部からユーザー名を導出する。
// 衝突した場合は連番サフィックス（_1, _2, ...）を付与する。
func (s *Service) deriveUsername(ctx context.Context, email string) (string, error) {
	base := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 1; i <= usernameSuffixLimit; i++ {
		existing, err := s.repo.FindByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}

	// 連番で空きが見つからない場合のフォールバック
	return fmt.Sprintf("%s_%s", base, uuid.New().String()[:8]), nil
}

// fetchAvatar はプロフィール画像をベストエフォートで取得する。失敗してもエラーにしない。
func (s *Service) fetchAvatar(ctx context.Context, user *model.User) {
	if s.avatars == nil || user.PictureURL == "" {
		return
	}
	data, mime, err := s.avatars.FetchAvatar(ctx, user.PictureURL)
	if err != nil || data == nil {
		return
	}
	user.AvatarData = data
	user.AvatarMime = mime
}

// AuthenticateLocal はユーザー名（またはメールアドレス）とパスワードで認証する。
// 存在しないユーザー・パスワード未設定・不一致はいずれもErrInvalidCredentialsを返す。
func (s *Service) AuthenticateLocal(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// メールアドレスでのログインも許容する
		user, err = s.repo.FindByEmail(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
	}

	if user == nil || !user.IsActive || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// RegisterInput はローカルアカウント登録の入力。
type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName string
}

// Register はローカルアカウントを登録する。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}
	if !s.whitelist.Allowed(input.Email) {
		return nil, ErrNotWhitelisted
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hash,
		Provider:     model.ProviderLocal,
		FullName:     input.FullName,
		IsActive:     true,
		ADHDProfile:  model.DefaultADHDProfile(),
		Stats:        model.UserStats{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// validateRegisterInput は登録入力を検証する。
func validateRegisterInput(input RegisterInput) error {
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if input.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if len(input.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	return nil
}

// ErrValidation は入力検証エラーを示す。
var ErrValidation = errors.New("validation error")

// GetByID は指定IDのユーザーを取得する。
func (s *Service) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// UpdateProfileInput はプロフィール更新の入力。nilのフィールドは変更しない。
type UpdateProfileInput struct {
	Username *string
	FullName *string
}

// UpdateProfile はユーザーのプロフィールを更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*model.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		if *input.Username == "" {
			return nil, fmt.Errorf("%w: username must not be empty", ErrValidation)
		}
		user.Username = *input.Username
	}
	if input.FullName != nil {
		user.FullName = *input.FullName
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// UpdateADHDProfile はユーザーのADHDプロフィールを更新する。
func (s *Service) UpdateADHDProfile(ctx context.Context, userID string, profile model.ADHDProfile) (*model.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.ADHDProfile = profile
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update adhd profile: %w", err)
	}
	return user, nil
}

// Deactivate はユーザーを論理削除する。行は物理削除しない。
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	if _, err := s.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	slog.Info("user deactivated", slog.String("user_id", userID))
	return nil
}
