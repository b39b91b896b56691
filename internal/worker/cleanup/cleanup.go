// Package cleanup は期限切れログインセッションの自動削除ジョブを提供する。
// フォーカスセッションは履歴として保持し、削除しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
)

// DefaultGracePeriod は期限切れから削除までの猶予期間のデフォルト値。
const DefaultGracePeriod = 24 * time.Hour

// ExpiredSessionDeleter は期限切れログインセッションを削除するインターフェース。
// repository.LoginSessionRepositoryが実装する。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は期限切れログインセッションの削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions    ExpiredSessionDeleter
	clock       clock.Clock
	logger      *slog.Logger
	GracePeriod time.Duration // 期限切れから削除までの猶予（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions ExpiredSessionDeleter, c clock.Clock, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sessions:    sessions,
		clock:       c,
		logger:      logger,
		GracePeriod: DefaultGracePeriod,
	}
}

// Run は猶予期間より前に期限切れとなったログインセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.clock.Now()
	before := start.Add(-j.GracePeriod)

	deletedCount, err := j.sessions.DeleteExpired(ctx, before)
	if err != nil {
		j.logger.Error("ログインセッションのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Time("before", before),
		)
		return fmt.Errorf("ログインセッションのクリーンアップに失敗: %w", err)
	}

	j.logger.Info("ログインセッションのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Time("before", before),
		slog.Float64("duration_ms", float64(j.clock.Now().Sub(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後interval間隔でRunを実行する。
// コンテキストがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("grace_period", j.GracePeriod),
	)

	// 失敗は次回の実行で再試行されるためログのみ
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
