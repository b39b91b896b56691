package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/model"
)

// SQLiteLoginSessionRepo はSQLiteを使用したログインセッションリポジトリ。
type SQLiteLoginSessionRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteLoginSessionRepo はSQLiteLoginSessionRepoを生成する。
func NewSQLiteLoginSessionRepo(db *sql.DB, c clock.Clock) *SQLiteLoginSessionRepo {
	return &SQLiteLoginSessionRepo{db: db, clock: c}
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *SQLiteLoginSessionRepo) FindByID(ctx context.Context, id string) (*model.LoginSession, error) {
	session := &model.LoginSession{}
	var expiresAt, createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM sessions
		 WHERE id = ? AND expires_at > ?`,
		id, formatSQLiteTime(r.clock.Now()),
	).Scan(&session.ID, &session.UserID, &expiresAt, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if session.ExpiresAt, err = parseSQLiteTime(expiresAt); err != nil {
		return nil, err
	}
	if session.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteExpired はbefore以前に期限切れとなったセッションを削除する。
func (r *SQLiteLoginSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`,
		formatSQLiteTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ LoginSessionRepository = (*SQLiteLoginSessionRepo)(nil)
