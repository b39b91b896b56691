// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/focusboard/internal/model"
)

var (
	// ErrNotFound は更新対象のセッションが存在しないことを示す。
	ErrNotFound = errors.New("focus session not found")

	// ErrVersionConflict は条件付き更新で期待したversionと一致しなかったことを示す。
	// 同一セッションへの同時書き込みで後着した側が受け取る。
	ErrVersionConflict = errors.New("focus session version conflict")

	// ErrActiveSessionExists はユーザーの非終端セッションが既に存在するため作成できないことを示す。
	ErrActiveSessionExists = errors.New("non-terminal focus session already exists for user")
)

// CompleteFunc は置き換え対象の非終端セッションを受け取り、
// それを終了させるためのパッチを返す。
type CompleteFunc func(current *model.FocusSession) model.FocusSessionPatch

// FocusSessionRepository はフォーカスセッションの永続化インターフェース。
// セッションは物理削除しない。
type FocusSessionRepository interface {
	// FindActiveByUserID はユーザーの非終端セッションを取得する。見つからない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.FocusSession, error)

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.FocusSession, error)

	// Create はセッションを作成する。
	// 同一ユーザーの非終端セッションが既に存在する場合はエラーを返す。
	Create(ctx context.Context, session *model.FocusSession) error

	// Update はversionが一致する場合のみ部分更新を行い、更新後のセッションを返す。
	// last_updated_at は現在時刻に、version は+1される。
	// IDが存在しない場合はErrNotFound、versionが一致しない場合はErrVersionConflictを返す。
	Update(ctx context.Context, id string, expectedVersion int, patch model.FocusSessionPatch) (*model.FocusSession, error)

	// ReplaceActive はユーザーの非終端セッションをcompleteが返すパッチで終了させ、
	// nextを新規作成する処理を1つのアトミックな単位として実行する。
	// 非終端セッションが無い場合はnextの作成のみ行い、completedはnilになる。
	ReplaceActive(ctx context.Context, userID string, complete CompleteFunc, next *model.FocusSession) (completed *model.FocusSession, err error)

	// ListByUserStartedBetween は started_at が [from, to) に含まれるセッションを
	// started_at の降順で返す。
	ListByUserStartedBetween(ctx context.Context, userID string, from, to time.Time) ([]*model.FocusSession, error)
}

// LoginSessionRepository はダッシュボードのログインセッションを参照するインターフェース。
// セッションの発行は外部の認証サブシステムが行う。
type LoginSessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.LoginSession, error)

	// DeleteExpired はbefore以前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
