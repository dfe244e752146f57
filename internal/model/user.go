// Package model はドメインモデルを定義する。
package model

import "time"

// Provider は認証プロバイダー種別を表す。
type Provider string

const (
	// ProviderLocal はメールアドレスとパスワードで登録したユーザー。
	ProviderLocal Provider = "local"
	// ProviderGoogle はGoogle OAuthで登録したユーザー。
	ProviderGoogle Provider = "google"
)

// EnergyLevel はエネルギーレベル（low/medium/high）を表す。
type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "low"
	EnergyMedium EnergyLevel = "medium"
	EnergyHigh   EnergyLevel = "high"
)

// ValidEnergyLevel はエネルギーレベルが定義済みの値かを判定する。
func ValidEnergyLevel(e EnergyLevel) bool {
	switch e {
	case EnergyLow, EnergyMedium, EnergyHigh:
		return true
	}
	return false
}

// EnergyPatterns は時間帯ごとのエネルギーパターン。
type EnergyPatterns struct {
	Morning   EnergyLevel `json:"morning"`
	Afternoon EnergyLevel `json:"afternoon"`
	Evening   EnergyLevel `json:"evening"`
}

// FocusDuration は集中持続時間の目安（分）。
type FocusDuration struct {
	Optimal int `json:"optimal"`
	Maximum int `json:"maximum"`
	Minimum int `json:"minimum"`
}

// Preferences はタスク支援機能のオン/オフ設定。
type Preferences struct {
	BreakReminders   bool `json:"break_reminders"`
	DopamineRewards  bool `json:"dopamine_rewards"`
	TaskChunking     bool `json:"task_chunking"`
	DeadlineBuffers  bool `json:"deadline_buffers"`
	HyperfocusAlerts bool `json:"hyperfocus_alerts"`
}

// Triggers は過負荷検知のしきい値設定。
type Triggers struct {
	OverwhelmThreshold    int    `json:"overwhelm_threshold"`
	ComplexityLimit       string `json:"complexity_limit"`
	NotificationFrequency string `json:"notification_frequency"`
}

// ADHDProfile はADHD特性に合わせたユーザー設定を表す。
// usersテーブルのJSONBカラムとして保存される。
type ADHDProfile struct {
	EnergyPatterns EnergyPatterns `json:"energy_patterns"`
	FocusDuration  FocusDuration  `json:"focus_duration"`
	Preferences    Preferences    `json:"preferences"`
	Triggers       Triggers       `json:"triggers"`
}

// DefaultADHDProfile は初回サインイン時に設定されるデフォルトプロファイルを返す。
func DefaultADHDProfile() ADHDProfile {
	return ADHDProfile{
		EnergyPatterns: EnergyPatterns{
			Morning:   EnergyHigh,
			Afternoon: EnergyMedium,
			Evening:   EnergyLow,
		},
		FocusDuration: FocusDuration{
			Optimal: 25,
			Maximum: 45,
			Minimum: 10,
		},
		Preferences: Preferences{
			BreakReminders:   true,
			DopamineRewards:  true,
			TaskChunking:     true,
			DeadlineBuffers:  true,
			HyperfocusAlerts: true,
		},
		Triggers: Triggers{
			OverwhelmThreshold:    5,
			ComplexityLimit:       "medium",
			NotificationFrequency: "gentle",
		},
	}
}

// UserStats はゲーミフィケーション用の統計カウンター。
// usersテーブルのJSONBカラムとして保存される。新規ユーザーは全てゼロで初期化される。
type UserStats struct {
	TasksCompletedToday int `json:"tasks_completed_today"`
	CurrentStreak       int `json:"current_streak"`
	LongestStreak       int `json:"longest_streak"`
	TotalTasksCompleted int `json:"total_tasks_completed"`
}

// User はサービス利用ユーザーを表す。
// Google認証ユーザーはPasswordHashを持たない。ローカル登録ユーザーは必ずPasswordHashを持つ。
// 退会処理は論理削除（IsActive=false）のみで、行は物理削除しない。
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string // ローカル登録ユーザーのみ
	GoogleID     string // Google連携済みの場合のみ
	Provider     Provider
	FullName     string
	PictureURL   string
	AvatarData   []byte // PictureURLから取得したコピー（取得失敗時はnil）
	AvatarMime   string
	IsActive     bool
	ADHDProfile  ADHDProfile
	Stats        UserStats
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
