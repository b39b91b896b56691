package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/config"
	"github.com/hitoshi/focusboard/internal/database"
	"github.com/hitoshi/focusboard/internal/repository"
)

// dbConnectTimeout は起動時のDB疎通確認のタイムアウト。
const dbConnectTimeout = 10 * time.Second

// store はSTORE_DRIVERに応じて開いたDB接続とリポジトリをまとめたもの。
type store struct {
	db            *sql.DB
	focusSessions repository.FocusSessionRepository
	loginSessions repository.LoginSessionRepository
}

// Close はDB接続を閉じる。
func (s *store) Close() error {
	return s.db.Close()
}

// openStore はSTORE_DRIVERに応じてDB接続を開き、疎通を確認してリポジトリを構築する。
// SQLiteの場合は単一プロセスでの利用を前提に、起動時にマイグレーションも適用する。
func openStore(ctx context.Context, cfg *config.Config, c clock.Clock) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		path := database.SQLitePathFromURL(cfg.DatabaseURL)
		db, err := database.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		if err := database.RunSQLiteMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("sqlite store opened", slog.String("path", path))

		return &store{
			db:            db,
			focusSessions: repository.NewSQLiteFocusSessionRepo(db, c),
			loginSessions: repository.NewSQLiteLoginSessionRepo(db, c),
		}, nil

	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}

		pingCtx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)

		return &store{
			db:            db,
			focusSessions: repository.NewPostgresFocusSessionRepo(db, c),
			loginSessions: repository.NewPostgresLoginSessionRepo(db, c),
		}, nil
	}
}
