package model

// ExternalIdentity は外部IDプロバイダーが検証したユーザーの身元情報。
// 認可コード交換またはIDトークン検証の結果として得られる。
type ExternalIdentity struct {
	Subject       string // プロバイダー内で安定したユーザーID（Googleのsub）
	Email         string
	EmailVerified bool
	Name          string
	PictureURL    string
}
