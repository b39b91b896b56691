package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/lib/pq"
)

// pgUniqueViolation はPostgreSQLの一意制約違反エラーコード。
const pgUniqueViolation = "23505"

// PostgresFocusSessionRepo はPostgreSQLを使用したフォーカスセッションリポジトリ。
// ユーザーごとの非終端セッションの一意性は部分ユニークインデックスで保証する。
type PostgresFocusSessionRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewPostgresFocusSessionRepo はPostgresFocusSessionRepoを生成する。
func NewPostgresFocusSessionRepo(db *sql.DB, c clock.Clock) *PostgresFocusSessionRepo {
	return &PostgresFocusSessionRepo{db: db, clock: c}
}

// FindActiveByUserID はユーザーの非終端セッションを取得する。見つからない場合はnilを返す。
func (r *PostgresFocusSessionRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.FocusSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+focusSessionColumns+`
		 FROM focus_sessions
		 WHERE user_id = $1 AND status <> 'completed'`,
		userID,
	)
	s, err := scanPostgresFocusSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active focus session: %w", err)
	}
	return s, nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresFocusSessionRepo) FindByID(ctx context.Context, id string) (*model.FocusSession, error) {
	return findPostgresFocusSessionByID(ctx, r.db, id)
}

// Create はセッションを作成する。
func (r *PostgresFocusSessionRepo) Create(ctx context.Context, session *model.FocusSession) error {
	return insertPostgresFocusSession(ctx, r.db, session, r.clock.Now())
}

// Update はversionが一致する場合のみ部分更新を行い、更新後のセッションを返す。
func (r *PostgresFocusSessionRepo) Update(ctx context.Context, id string, expectedVersion int, patch model.FocusSessionPatch) (*model.FocusSession, error) {
	current, err := findPostgresFocusSessionByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	return updatePostgresFocusSession(ctx, r.db, current, patch, r.clock.Now())
}

// ReplaceActive はユーザーの非終端セッションを終了させ、nextを作成する。
// ユーザー単位のアドバイザリロックで同時startを直列化する。
func (r *PostgresFocusSessionRepo) ReplaceActive(ctx context.Context, userID string, complete CompleteFunc, next *model.FocusSession) (*model.FocusSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return nil, fmt.Errorf("failed to acquire user lock: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+focusSessionColumns+`
		 FROM focus_sessions
		 WHERE user_id = $1 AND status <> 'completed'
		 FOR UPDATE`,
		userID,
	)
	current, err := scanPostgresFocusSession(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to lock active focus session: %w", err)
	}

	now := r.clock.Now()
	var completed *model.FocusSession
	if err == nil {
		completed, err = updatePostgresFocusSession(ctx, tx, current, complete(current.Clone()), now)
		if err != nil {
			return nil, fmt.Errorf("failed to complete previous focus session: %w", err)
		}
	}

	if err := insertPostgresFocusSession(ctx, tx, next, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return completed, nil
}

// ListByUserStartedBetween は started_at が [from, to) のセッションを降順で返す。
func (r *PostgresFocusSessionRepo) ListByUserStartedBetween(ctx context.Context, userID string, from, to time.Time) ([]*model.FocusSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+focusSessionColumns+`
		 FROM focus_sessions
		 WHERE user_id = $1 AND started_at >= $2 AND started_at < $3
		 ORDER BY started_at DESC, id DESC`,
		userID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list focus sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.FocusSession
	for rows.Next() {
		s, err := scanPostgresFocusSession(rows)
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

func findPostgresFocusSessionByID(ctx context.Context, q dbtx, id string) (*model.FocusSession, error) {
	s, err := scanPostgresFocusSession(q.QueryRowContext(ctx,
		`SELECT `+focusSessionColumns+` FROM focus_sessions WHERE id = $1`,
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

func insertPostgresFocusSession(ctx context.Context, q dbtx, session *model.FocusSession, now time.Time) error {
	session.LastUpdatedAt = now
	session.Version = 1

	_, err := q.ExecContext(ctx,
		`INSERT INTO focus_sessions (`+focusSessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		session.ID, session.UserID, string(session.Status), session.StartedAt.UTC(), nullTimeFrom(session.EndedAt),
		session.TotalFocusSeconds, session.TotalBreakSeconds, session.BreaksTaken,
		nullTimeFrom(session.BreakStartedAt), nullTimeFrom(session.BreakEndsAt), session.LastUpdatedAt, session.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return fmt.Errorf("failed to create focus session: %w", ErrActiveSessionExists)
		}
		return fmt.Errorf("failed to create focus session: %w", err)
	}
	return nil
}

// updatePostgresFocusSession はcurrentのversionを条件にパッチ適用後の値で更新する。
func updatePostgresFocusSession(ctx context.Context, q dbtx, current *model.FocusSession, patch model.FocusSessionPatch, now time.Time) (*model.FocusSession, error) {
	updated := patchedSession(current, patch, now)

	result, err := q.ExecContext(ctx,
		`UPDATE focus_sessions
		 SET status = $1, ended_at = $2, total_focus_seconds = $3, total_break_seconds = $4,
		     breaks_taken = $5, break_started_at = $6, break_ends_at = $7,
		     last_updated_at = $8, version = $9
		 WHERE id = $10 AND version = $11`,
		string(updated.Status), nullTimeFrom(updated.EndedAt), updated.TotalFocusSeconds, updated.TotalBreakSeconds,
		updated.BreaksTaken, nullTimeFrom(updated.BreakStartedAt), nullTimeFrom(updated.BreakEndsAt),
		updated.LastUpdatedAt, updated.Version,
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

func scanPostgresFocusSession(row rowScanner) (*model.FocusSession, error) {
	s := &model.FocusSession{}
	var status string
	var endedAt, breakStartedAt, breakEndsAt sql.NullTime

	err := row.Scan(
		&s.ID, &s.UserID, &status, &s.StartedAt, &endedAt,
		&s.TotalFocusSeconds, &s.TotalBreakSeconds, &s.BreaksTaken,
		&breakStartedAt, &breakEndsAt, &s.LastUpdatedAt, &s.Version,
	)
	if err != nil {
		return nil, err
	}

	s.Status = model.FocusStatus(status)
	s.StartedAt = s.StartedAt.UTC()
	s.LastUpdatedAt = s.LastUpdatedAt.UTC()
	s.EndedAt = timePtrFrom(endedAt)
	s.BreakStartedAt = timePtrFrom(breakStartedAt)
	s.BreakEndsAt = timePtrFrom(breakEndsAt)
	return s, nil
}

// compile-time interface check
var _ FocusSessionRepository = (*PostgresFocusSessionRepo)(nil)
