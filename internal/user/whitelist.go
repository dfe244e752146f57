package user

import "strings"

// Whitelist はサインイン可能なメールアドレスの許可リスト。
// 無効の場合は全てのメールアドレスを許可する。
// 有効かつリストが空の場合は全てのメールアドレスを拒否する。
type Whitelist struct {
	enabled bool
	emails  map[string]struct{}
}

// NewWhitelist はWhitelistを生成する。メールアドレスは小文字に正規化して保持する。
func NewWhitelist(enabled bool, emails []string) *Whitelist {
	normalized := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			normalized[email] = struct{}{}
		}
	}
	return &Whitelist{enabled: enabled, emails: normalized}
}

// Allowed はメールアドレスがサインイン可能かを判定する。
// 大文字小文字は区別しない。
func (w *Whitelist) Allowed(email string) bool {
	if !w.enabled {
		return true
	}
	_, ok := w.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
