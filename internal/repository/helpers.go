package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/focusboard/internal/model"
)

// focusSessionColumns はSELECT時のカラム順序。scanFocusSessionと対応させること。
const focusSessionColumns = `id, user_id, status, started_at, ended_at,
	total_focus_seconds, total_break_seconds, breaks_taken,
	break_started_at, break_ends_at, last_updated_at, version`

// sqliteTimeLayout はSQLiteにTEXTとして保存する時刻フォーマット。
// 固定長のUTC表記のため文字列比較で大小比較できる。
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// dbtx は *sql.DB と *sql.Tx の共通インターフェース。
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// patchedSession は現在のセッションにパッチを適用した更新後の値を返す。
// 更新時刻とversionもここで確定させる。
func patchedSession(current *model.FocusSession, patch model.FocusSessionPatch, now time.Time) *model.FocusSession {
	updated := current.Clone()
	updated.Apply(patch)
	updated.LastUpdatedAt = now
	updated.Version = current.Version + 1
	return updated
}

// nullTimeFrom は *time.Time を sql.NullTime に変換する。
func nullTimeFrom(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// timePtrFrom は sql.NullTime を UTC の *time.Time に変換する。
func timePtrFrom(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// formatSQLiteTime はSQLite保存用の文字列に変換する。
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// formatNullableSQLiteTime はnilの場合にSQL NULLとなる値を返す。
func formatNullableSQLiteTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatSQLiteTime(*t)
}

// parseSQLiteTime はSQLiteに保存した時刻文字列を解析する。
func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// parseNullableSQLiteTime はNULL許容の時刻文字列を解析する。
func parseNullableSQLiteTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseSQLiteTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
