// Package model はドメインモデルを定義する。
package model

import "time"

// LoginSession はダッシュボードのログインセッションを表す。
// 発行は外部の認証サブシステムが行い、本サービスは参照と期限切れ削除のみ行う。
type LoginSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
