package user

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lib/pq"

	"github.com/focusflow/backend/internal/config"
	"github.com/focusflow/backend/internal/model"
)

// mockUserRepo はrepository.UserRepositoryのモック。
// 未設定の関数フィールドは「見つからない」「成功」として振る舞う。
type mockUserRepo struct {
	mu sync.Mutex

	findByIDFunc       func(ctx context.Context, id string) (*model.User, error)
	findByEmailFunc    func(ctx context.Context, email string) (*model.User, error)
	findByGoogleIDFunc func(ctx context.Context, googleID string) (*model.User, error)
	findByUsernameFunc func(ctx context.Context, username string) (*model.User, error)
	createFunc         func(ctx context.Context, user *model.User) error
	updateFunc         func(ctx context.Context, user *model.User) error

	created       []*model.User
	updated       []*model.User
	deactivatedID string
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	if m.findByGoogleIDFunc != nil {
		return m.findByGoogleIDFunc(ctx, googleID)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFunc != nil {
		return m.findByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	m.created = append(m.created, user)
	m.mu.Unlock()
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	m.updated = append(m.updated, user)
	m.mu.Unlock()
	if m.updateFunc != nil {
		return m.updateFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateStats(ctx context.Context, userID string, stats model.UserStats) error {
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, userID string) error {
	m.deactivatedID = userID
	return nil
}

func allowAll() *Whitelist {
	return NewWhitelist(false, nil)
}

func googleIdent() *model.ExternalIdentity {
	return &model.ExternalIdentity{
		Subject:       "google-sub-123",
		Email:         "taro@example.com",
		EmailVerified: true,
		Name:          "山田太郎",
		PictureURL:    "https://example.com/taro.jpg",
	}
}

func TestResolveOrCreateNewUser(t *testing.T) {
	repo := &mockUserRepo{}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	user, err := service.ResolveOrCreate(context.Background(), googleIdent())
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("Expected 1 created user, got %d", len(repo.created))
	}
	if user.Email != "taro@example.com" {
		t.Errorf("Expected email 'taro@example.com', got '%s'", user.Email)
	}
	if user.Username != "taro" {
		t.Errorf("Expected username 'taro', got '%s'", user.Username)
	}
	if user.GoogleID != "google-sub-123" {
		t.Errorf("Expected google ID 'google-sub-123', got '%s'", user.GoogleID)
	}
	if user.Provider != model.ProviderGoogle {
		t.Errorf("Expected provider 'google', got '%s'", user.Provider)
	}
	if !user.IsActive {
		t.Error("Expected new user to be active")
	}
	// デフォルトのADHDプロフィールとゼロ統計で初期化される
	if user.ADHDProfile.FocusDuration.Optimal != 25 {
		t.Errorf("Expected default optimal focus 25, got %d", user.ADHDProfile.FocusDuration.Optimal)
	}
	if user.Stats.TotalTasksCompleted != 0 || user.Stats.CurrentStreak != 0 {
		t.Error("Expected zeroed stats for new user")
	}
}

func TestResolveOrCreateExistingUser(t *testing.T) {
	existing := &model.User{
		ID:       "user-1",
		Email:    "taro@example.com",
		Username: "taro",
		GoogleID: "google-sub-123",
		Provider: model.ProviderGoogle,
		FullName: "山田太郎",
		IsActive: true,
	}
	repo := &mockUserRepo{
		findByGoogleIDFunc: func(ctx context.Context, googleID string) (*model.User, error) {
			if googleID == "google-sub-123" {
				return existing, nil
			}
			return nil, nil
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	ident := googleIdent()
	ident.PictureURL = ""

	user, err := service.ResolveOrCreate(context.Background(), ident)
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	if user.ID != "user-1" {
		t.Errorf("Expected existing user 'user-1', got '%s'", user.ID)
	}
	if len(repo.created) != 0 {
		t.Errorf("Expected no user creation, got %d", len(repo.created))
	}
}

func TestResolveOrCreateWhitelistDeniesBeforeCreate(t *testing.T) {
	repo := &mockUserRepo{}
	whitelist := NewWhitelist(true, []string{"allowed@example.com"})
	service := NewService(repo, whitelist, config.LinkPolicyLink, nil)

	_, err := service.ResolveOrCreate(context.Background(), googleIdent())
	if !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("Expected ErrNotWhitelisted, got %v", err)
	}
	// 拒否時にはユーザー行が作成されない
	if len(repo.created) != 0 {
		t.Errorf("Expected no user creation on whitelist denial, got %d", len(repo.created))
	}
}

func TestResolveOrCreateWhitelistCaseInsensitive(t *testing.T) {
	repo := &mockUserRepo{}
	whitelist := NewWhitelist(true, []string{"Taro@Example.com"})
	service := NewService(repo, whitelist, config.LinkPolicyLink, nil)

	_, err := service.ResolveOrCreate(context.Background(), googleIdent())
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
}

func TestResolveOrCreateLinkPolicy(t *testing.T) {
	local := &model.User{
		ID:           "user-1",
		Email:        "taro@example.com",
		Username:     "taro",
		PasswordHash: "hash",
		Provider:     model.ProviderLocal,
		IsActive:     true,
	}
	repo := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return local, nil
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	user, err := service.ResolveOrCreate(context.Background(), googleIdent())
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}

	if user.ID != "user-1" {
		t.Errorf("Expected existing user 'user-1', got '%s'", user.ID)
	}
	if user.GoogleID != "google-sub-123" {
		t.Errorf("Expected google ID to be linked, got '%s'", user.GoogleID)
	}
	if len(repo.updated) != 1 {
		t.Errorf("Expected 1 update, got %d", len(repo.updated))
	}
	if len(repo.created) != 0 {
		t.Errorf("Expected no user creation, got %d", len(repo.created))
	}
}

func TestResolveOrCreateConflictPolicy(t *testing.T) {
	local := &model.User{
		ID:       "user-1",
		Email:    "taro@example.com",
		Provider: model.ProviderLocal,
		IsActive: true,
	}
	repo := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return local, nil
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyConflict, nil)

	_, err := service.ResolveOrCreate(context.Background(), googleIdent())
	if !errors.Is(err, ErrProviderConflict) {
		t.Errorf("Expected ErrProviderConflict, got %v", err)
	}
}

func TestResolveOrCreateDeactivatedAccount(t *testing.T) {
	deactivated := &model.User{
		ID:       "user-1",
		GoogleID: "google-sub-123",
		IsActive: false,
	}
	repo := &mockUserRepo{
		findByGoogleIDFunc: func(ctx context.Context, googleID string) (*model.User, error) {
			return deactivated, nil
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	_, err := service.ResolveOrCreate(context.Background(), googleIdent())
	if !errors.Is(err, ErrAccountDeactivated) {
		t.Errorf("Expected ErrAccountDeactivated, got %v", err)
	}
}

func TestResolveOrCreateConcurrentConflict(t *testing.T) {
	winner := &model.User{
		ID:       "user-winner",
		Email:    "taro@example.com",
		GoogleID: "google-sub-123",
		IsActive: true,
	}

	lookups := 0
	repo := &mockUserRepo{
		findByGoogleIDFunc: func(ctx context.Context, googleID string) (*model.User, error) {
			lookups++
			// 1回目のルックアップでは未作成、INSERT失敗後の再試行で勝者の行が見える
			if lookups == 1 {
				return nil, nil
			}
			return winner, nil
		},
		createFunc: func(ctx context.Context, user *model.User) error {
			return &pq.Error{Code: "23505"}
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	user, err := service.ResolveOrCreate(context.Background(), googleIdent())
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if user.ID != "user-winner" {
		t.Errorf("Expected winner's user 'user-winner', got '%s'", user.ID)
	}
}

func TestResolveOrCreateUsernameCollision(t *testing.T) {
	taken := map[string]bool{"taro": true, "taro_1": true}
	repo := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			if taken[username] {
				return &model.User{ID: "other", Username: username}, nil
			}
			return nil, nil
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	user, err := service.ResolveOrCreate(context.Background(), googleIdent())
	if err != nil {
		t.Fatalf("ResolveOrCreate failed: %v", err)
	}
	if user.Username != "taro_2" {
		t.Errorf("Expected username 'taro_2', got '%s'", user.Username)
	}
}

func TestAuthenticateLocalSuccess(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	stored := &model.User{
		ID:           "user-1",
		Username:     "taro",
		PasswordHash: hash,
		IsActive:     true,
	}
	repo := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			if username == "taro" {
				return stored, nil
			}
			return nil, nil
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	user, err := service.AuthenticateLocal(context.Background(), "taro", "secret123")
	if err != nil {
		t.Fatalf("AuthenticateLocal failed: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("Expected user 'user-1', got '%s'", user.ID)
	}
}

func TestAuthenticateLocalFailures(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	tests := []struct {
		name     string
		stored   *model.User
		username string
		password string
	}{
		{
			name:     "存在しないユーザー",
			stored:   nil,
			username: "unknown",
			password: "secret123",
		},
		{
			name: "パスワード不一致",
			stored: &model.User{
				ID: "user-1", Username: "taro", PasswordHash: hash, IsActive: true,
			},
			username: "taro",
			password: "wrong-password",
		},
		{
			name: "パスワード未設定（Googleのみのアカウント）",
			stored: &model.User{
				ID: "user-1", Username: "taro", IsActive: true,
			},
			username: "taro",
			password: "secret123",
		},
		{
			name: "論理削除済みアカウント",
			stored: &model.User{
				ID: "user-1", Username: "taro", PasswordHash: hash, IsActive: false,
			},
			username: "taro",
			password: "secret123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{
				findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
					if tt.stored != nil && username == tt.stored.Username {
						return tt.stored, nil
					}
					return nil, nil
				},
			}
			service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

			// 失敗理由は区別せず常にErrInvalidCredentialsを返す
			_, err := service.AuthenticateLocal(context.Background(), tt.username, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestRegisterSuccess(t *testing.T) {
	repo := &mockUserRepo{}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "hanako@example.com",
		Username: "hanako",
		Password: "secret123",
		FullName: "鈴木花子",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if user.Provider != model.ProviderLocal {
		t.Errorf("Expected provider 'local', got '%s'", user.Provider)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret123" {
		t.Error("Expected hashed password")
	}
	if !VerifyPassword(user.PasswordHash, "secret123") {
		t.Error("Stored hash does not verify against original password")
	}
}

func TestRegisterValidation(t *testing.T) {
	repo := &mockUserRepo{}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{name: "不正なメール", input: RegisterInput{Email: "not-an-email", Username: "a", Password: "secret123"}},
		{name: "ユーザー名なし", input: RegisterInput{Email: "a@example.com", Password: "secret123"}},
		{name: "短すぎるパスワード", input: RegisterInput{Email: "a@example.com", Username: "a", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), tt.input)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	repo := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			return &pq.Error{Code: "23505"}
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "hanako@example.com",
		Username: "hanako",
		Password: "secret123",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, IsActive: true}, nil
		},
	}
	service := NewService(repo, allowAll(), config.LinkPolicyLink, nil)

	if err := service.Deactivate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	if repo.deactivatedID != "user-1" {
		t.Errorf("Expected deactivation of 'user-1', got '%s'", repo.deactivatedID)
	}
}

func TestWhitelistEnabledEmpty(t *testing.T) {
	// 有効かつリストが空の場合は全拒否
	whitelist := NewWhitelist(true, nil)
	if whitelist.Allowed("anyone@example.com") {
		t.Error("Expected empty enabled whitelist to deny all")
	}
}
