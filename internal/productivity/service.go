package productivity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/repository"
)

// GoalsProvider はユーザーの生産性目標を返す。未設定の場合はnilを返す。
type GoalsProvider interface {
	Goals(ctx context.Context, userID string) (*model.ProductivityGoals, error)
}

// TaskProgressProvider は今日のタスク完了率（0〜100）を返す。
type TaskProgressProvider interface {
	TaskCompletionPercent(ctx context.Context, userID string) (float64, error)
}

// Service は生産性サマリーのサービス層。
type Service struct {
	repo     repository.FocusSessionRepository
	goals    GoalsProvider
	tasks    TaskProgressProvider
	clock    clock.Clock
	location *time.Location
}

// NewService はServiceの新しいインスタンスを生成する。
// tasksがnilの場合、タスク完了率は常に0として扱う。
func NewService(
	repo repository.FocusSessionRepository,
	goals GoalsProvider,
	tasks TaskProgressProvider,
	c clock.Clock,
	loc *time.Location,
) *Service {
	return &Service{
		repo:     repo,
		goals:    goals,
		tasks:    tasks,
		clock:    c,
		location: locationOrLocal(loc),
	}
}

// Location は集計に使用するタイムゾーンを返す。
func (s *Service) Location() *time.Location {
	return s.location
}

// Summary はユーザーの今日と今週の集計を返す。
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	return s.SummaryAt(ctx, userID, s.clock.Now())
}

// SummaryAt はnow時点での集計を返す。
// 遷移直後の応答で、遷移と同じ時刻を基準に集計するために使用する。
func (s *Service) SummaryAt(ctx context.Context, userID string, now time.Time) (*Summary, error) {
	weekStart, weekEnd := WeekRange(now, s.location)

	sessions, err := s.repo.ListByUserStartedBetween(ctx, userID, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("今週のセッションの取得に失敗しました: %w", err)
	}

	var goals *model.ProductivityGoals
	if s.goals != nil {
		goals, err = s.goals.Goals(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("生産性目標の取得に失敗しました: %w", err)
		}
	}

	summary := Summarize(Input{
		Sessions:              sessions,
		Now:                   now,
		Location:              s.location,
		Goals:                 goals,
		TaskCompletionPercent: s.taskPercent(ctx, userID),
	})
	return &summary, nil
}

// taskPercent はタスク完了率を返す。取得できない場合は0とする。
func (s *Service) taskPercent(ctx context.Context, userID string) float64 {
	if s.tasks == nil {
		return 0
	}
	pct, err := s.tasks.TaskCompletionPercent(ctx, userID)
	if err != nil {
		slog.Warn("task completion percent unavailable, using 0",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return 0
	}
	return pct
}
