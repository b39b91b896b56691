// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, focus, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidAPIKey     = "INVALID_API_KEY"
	ErrCodeCSRFTokenInvalid  = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// HasCode はerrがAPIErrorであり、コードがcodeと一致するかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewSessionNotFoundError はフォーカスセッション未検出エラーを生成する。
// 他ユーザーのセッションや終了済みセッションへの操作もこのエラーになる。
func NewSessionNotFoundError(sessionID string) *APIError {
	msg := "進行中のフォーカスセッションがありません。"
	if sessionID != "" {
		msg = fmt.Sprintf("指定されたフォーカスセッションが見つかりません: %s", sessionID)
	}
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  msg,
		Category: "focus",
		Action:   "ダッシュボードを再読み込みして、最新のセッション状態を確認してください。",
	}
}

// NewInvalidTransitionError は現在の状態から許可されない遷移のエラーを生成する。
func NewInvalidTransitionError(operation string, status FocusStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("現在の状態(%s)では%sを実行できません。", status, operation),
		Category: "focus",
		Action:   "セッション状態を再取得してから操作してください。",
	}
}

// NewConcurrentUpdateError は同時更新に敗れた場合のエラーを生成する。
// 呼び出し側からは不正遷移と同じ扱いになる。
func NewConcurrentUpdateError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("他の操作と競合したため%sを実行できませんでした。", operation),
		Category: "focus",
		Action:   "セッション状態を再取得してから操作してください。",
	}
}

// NewInvalidInputError は入力値の検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidAPIKeyError は拡張機能のAPIキーが無効な場合のエラーを生成する。
func NewInvalidAPIKeyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAPIKey,
		Message:  "APIキーが無効です。",
		Category: "auth",
		Action:   "ダッシュボードの設定画面でAPIキーを確認し、拡張機能に再設定してください。",
	}
}

// NewCSRFTokenError はCSRFトークン検証に失敗した場合のエラーを生成する。
func NewCSRFTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度操作してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
