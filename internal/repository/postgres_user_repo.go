package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/focusflow/backend/internal/model"
)

// uniqueViolationCode はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolationCode = "23505"

// IsUniqueViolation はエラーが一意制約違反かを判定する。
// 同時初回サインインの競合検知に使用する（敗者はルックアップを再試行する）。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userColumns はSELECT句で使用するカラムリスト。scanUserと順序を一致させること。
const userColumns = `id, email, username, password_hash, google_id, provider, full_name,
	picture_url, avatar_data, avatar_mime, is_active, adhd_profile, stats, created_at, updated_at`

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var username, passwordHash, googleID sql.NullString
	var adhdProfile, stats []byte

	err := row.Scan(
		&user.ID, &user.Email, &username, &passwordHash, &googleID, &user.Provider,
		&user.FullName, &user.PictureURL, &user.AvatarData, &user.AvatarMime,
		&user.IsActive, &adhdProfile, &stats, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.Username = username.String
	user.PasswordHash = passwordHash.String
	user.GoogleID = googleID.String

	if len(adhdProfile) > 0 {
		if err := json.Unmarshal(adhdProfile, &user.ADHDProfile); err != nil {
			return nil, fmt.Errorf("failed to decode adhd_profile: %w", err)
		}
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &user.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode stats: %w", err)
		}
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByGoogleID はGoogleのsubject IDでユーザーを検索する。
func (r *PostgresUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google ID: %w", err)
	}
	return user, nil
}

// FindByUsername はユーザー名でユーザーを検索する。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
// 一意制約違反のエラーはラップせずに判別可能なまま返す（IsUniqueViolation参照）。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	adhdProfile, err := json.Marshal(user.ADHDProfile)
	if err != nil {
		return fmt.Errorf("failed to encode adhd_profile: %w", err)
	}
	stats, err := json.Marshal(user.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, google_id, provider, full_name,
			picture_url, avatar_data, avatar_mime, is_active, adhd_profile, stats, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		user.ID, user.Email, nullString(user.Username), nullString(user.PasswordHash),
		nullString(user.GoogleID), user.Provider, user.FullName, user.PictureURL,
		user.AvatarData, user.AvatarMime, user.IsActive, adhdProfile, stats,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はユーザーのプロフィール・連携情報を更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	adhdProfile, err := json.Marshal(user.ADHDProfile)
	if err != nil {
		return fmt.Errorf("failed to encode adhd_profile: %w", err)
	}
	stats, err := json.Marshal(user.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			username = $2, password_hash = $3, google_id = $4, provider = $5,
			full_name = $6, picture_url = $7, avatar_data = $8, avatar_mime = $9,
			is_active = $10, adhd_profile = $11, stats = $12, updated_at = $13
		 WHERE id = $1`,
		user.ID, nullString(user.Username), nullString(user.PasswordHash),
		nullString(user.GoogleID), user.Provider, user.FullName, user.PictureURL,
		user.AvatarData, user.AvatarMime, user.IsActive, adhdProfile, stats,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(result, "user", user.ID)
}

// UpdateStats はゲーミフィケーション統計のみを更新する。
func (r *PostgresUserRepo) UpdateStats(ctx context.Context, userID string, stats model.UserStats) error {
	encoded, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET stats = $2, updated_at = $3 WHERE id = $1`,
		userID, encoded, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	return requireAffected(result, "user", userID)
}

// Deactivate はユーザーを論理削除する。
func (r *PostgresUserRepo) Deactivate(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = $2 WHERE id = $1`,
		userID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	return requireAffected(result, "user", userID)
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// requireAffected は更新対象の行が存在したことを検証する。
func requireAffected(result sql.Result, kind, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
