package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/model"
)

// PostgresLoginSessionRepo はPostgreSQLを使用したログインセッションリポジトリ。
type PostgresLoginSessionRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewPostgresLoginSessionRepo はPostgresLoginSessionRepoを生成する。
func NewPostgresLoginSessionRepo(db *sql.DB, c clock.Clock) *PostgresLoginSessionRepo {
	return &PostgresLoginSessionRepo{db: db, clock: c}
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresLoginSessionRepo) FindByID(ctx context.Context, id string) (*model.LoginSession, error) {
	session := &model.LoginSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > $2`,
		id, r.clock.Now(),
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// DeleteExpired はbefore以前に期限切れとなったセッションを削除する。
func (r *PostgresLoginSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`,
		before.UTC(),
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
var _ LoginSessionRepository = (*PostgresLoginSessionRepo)(nil)
