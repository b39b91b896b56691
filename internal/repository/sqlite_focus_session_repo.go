package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteFocusSessionRepo はSQLiteを使用したフォーカスセッションリポジトリ。
// 単一ノード構成やローカル開発で使用する。時刻は固定長のUTC文字列で保存する。
type SQLiteFocusSessionRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteFocusSessionRepo はSQLiteFocusSessionRepoを生成する。
func NewSQLiteFocusSessionRepo(db *sql.DB, c clock.Clock) *SQLiteFocusSessionRepo {
	return &SQLiteFocusSessionRepo{db: db, clock: c}
}

// FindActiveByUserID はユーザーの非終端セッションを取得する。見つからない場合はnilを返す。
func (r *SQLiteFocusSessionRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.FocusSession, error) {
	return findActiveSQLiteFocusSession(ctx, r.db, userID)
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *SQLiteFocusSessionRepo) FindByID(ctx context.Context, id string) (*model.FocusSession, error) {
	s, err := scanSQLiteFocusSession(r.db.QueryRowContext(ctx,
		`SELECT `+focusSessionColumns+` FROM focus_sessions WHERE id = ?`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find focus session: %w", err)
	}
	return s, nil
}

// Create はセッションを作成する。
func (r *SQLiteFocusSessionRepo) Create(ctx context.Context, session *model.FocusSession) error {
	return insertSQLiteFocusSession(ctx, r.db, session, r.clock.Now())
}

// Update はversionが一致する場合のみ部分更新を行い、更新後のセッションを返す。
func (r *SQLiteFocusSessionRepo) Update(ctx context.Context, id string, expectedVersion int, patch model.FocusSessionPatch) (*model.FocusSession, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	return updateSQLiteFocusSession(ctx, r.db, current, patch, r.clock.Now())
}

// ReplaceActive はユーザーの非終端セッションを終了させ、nextを作成する。
// 同時実行時の一意性は部分ユニークインデックスで保証する。
func (r *SQLiteFocusSessionRepo) ReplaceActive(ctx context.Context, userID string, complete CompleteFunc, next *model.FocusSession) (*model.FocusSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := findActiveSQLiteFocusSession(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	var completed *model.FocusSession
	if current != nil {
		completed, err = updateSQLiteFocusSession(ctx, tx, current, complete(current.Clone()), now)
		if err != nil {
			return nil, fmt.Errorf("failed to complete previous focus session: %w", err)
		}
	}

	if err := insertSQLiteFocusSession(ctx, tx, next, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return completed, nil
}

// ListByUserStartedBetween は started_at が [from, to) のセッションを降順で返す。
func (r *SQLiteFocusSessionRepo) ListByUserStartedBetween(ctx context.Context, userID string, from, to time.Time) ([]*model.FocusSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+focusSessionColumns+`
		 FROM focus_sessions
		 WHERE user_id = ? AND started_at >= ? AND started_at < ?
		 ORDER BY started_at DESC, id DESC`,
		userID, formatSQLiteTime(from), formatSQLiteTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list focus sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.FocusSession
	for rows.Next() {
		s, err := scanSQLiteFocusSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan focus session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate focus sessions: %w", err)
	}
	return sessions, nil
}

func findActiveSQLiteFocusSession(ctx context.Context, q dbtx, userID string) (*model.FocusSession, error) {
	s, err := scanSQLiteFocusSession(q.QueryRowContext(ctx,
		`SELECT `+focusSessionColumns+`
		 FROM focus_sessions
		 WHERE user_id = ? AND status <> 'completed'`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active focus session: %w", err)
	}
	return s, nil
}

func insertSQLiteFocusSession(ctx context.Context, q dbtx, session *model.FocusSession, now time.Time) error {
	session.LastUpdatedAt = now
	session.Version = 1

	_, err := q.ExecContext(ctx,
		`INSERT INTO focus_sessions (`+focusSessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, string(session.Status),
		formatSQLiteTime(session.StartedAt), formatNullableSQLiteTime(session.EndedAt),
		session.TotalFocusSeconds, session.TotalBreakSeconds, session.BreaksTaken,
		formatNullableSQLiteTime(session.BreakStartedAt), formatNullableSQLiteTime(session.BreakEndsAt),
		formatSQLiteTime(session.LastUpdatedAt), session.Version,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("failed to create focus session: %w", ErrActiveSessionExists)
		}
		return fmt.Errorf("failed to create focus session: %w", err)
	}
	return nil
}

func updateSQLiteFocusSession(ctx context.Context, q dbtx, current *model.FocusSession, patch model.FocusSessionPatch, now time.Time) (*model.FocusSession, error) {
	updated := patchedSession(current, patch, now)

	result, err := q.ExecContext(ctx,
		`UPDATE focus_sessions
		 SET status = ?, ended_at = ?, total_focus_seconds = ?, total_break_seconds = ?,
		     breaks_taken = ?, break_started_at = ?, break_ends_at = ?,
		     last_updated_at = ?, version = ?
		 WHERE id = ? AND version = ?`,
		string(updated.Status), formatNullableSQLiteTime(updated.EndedAt),
		updated.TotalFocusSeconds, updated.TotalBreakSeconds, updated.BreaksTaken,
		formatNullableSQLiteTime(updated.BreakStartedAt), formatNullableSQLiteTime(updated.BreakEndsAt),
		formatSQLiteTime(updated.LastUpdatedAt), updated.Version,
		current.ID, current.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update focus session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrVersionConflict
	}
	return updated, nil
}

func scanSQLiteFocusSession(row rowScanner) (*model.FocusSession, error) {
	s := &model.FocusSession{}
	var status, startedAt, lastUpdatedAt string
	var endedAt, breakStartedAt, breakEndsAt sql.NullString

	err := row.Scan(
		&s.ID, &s.UserID, &status, &startedAt, &endedAt,
		&s.TotalFocusSeconds, &s.TotalBreakSeconds, &s.BreaksTaken,
		&breakStartedAt, &breakEndsAt, &lastUpdatedAt, &s.Version,
	)
	if err != nil {
		return nil, err
	}

	s.Status = model.FocusStatus(status)
	if s.StartedAt, err = parseSQLiteTime(startedAt); err != nil {
		return nil, err
	}
	if s.LastUpdatedAt, err = parseSQLiteTime(lastUpdatedAt); err != nil {
		return nil, err
	}
	if s.EndedAt, err = parseNullableSQLiteTime(endedAt); err != nil {
		return nil, err
	}
	if s.BreakStartedAt, err = parseNullableSQLiteTime(breakStartedAt); err != nil {
		return nil, err
	}
	if s.BreakEndsAt, err = parseNullableSQLiteTime(breakEndsAt); err != nil {
		return nil, err
	}
	return s, nil
}

// isSQLiteUniqueViolation はUNIQUE制約違反かどうかを判定する。
func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// compile-time interface check
var _ FocusSessionRepository = (*SQLiteFocusSessionRepo)(nil)
