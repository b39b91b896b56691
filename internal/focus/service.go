// Package focus はフォーカスセッションの状態遷移と時間計算を提供する。
//
// 状態は active → on_break → active → … → completed と遷移する。
// completed は active と on_break のどちらからも到達でき、以後は変更されない。
// 休憩の終了時刻を過ぎても自動では再開・終了しない。
package focus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/metrics"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/repository"
)

// DefaultMaxBreakMinutes は休憩時間の上限のデフォルト値（分）。
const DefaultMaxBreakMinutes = 240

// 遷移名。ログとメトリクスのラベルに使用する。
const (
	TransitionStart     = "start"
	TransitionTakeBreak = "take_break"
	TransitionResume    = "resume"
	TransitionEnd       = "end"
)

// Service はフォーカスセッションのサービス層。
// 同一プロセス内の遷移はユーザー単位で直列化し、
// プロセス間の競合はストアのversion条件付き更新で検出する。
type Service struct {
	repo            repository.FocusSessionRepository
	clock           clock.Clock
	metrics         metrics.MetricsCollector
	locks           *userLocks
	maxBreakMinutes int
	newID           func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// maxBreakMinutesが0以下の場合はDefaultMaxBreakMinutesを使用する。
func NewService(
	repo repository.FocusSessionRepository,
	c clock.Clock,
	m metrics.MetricsCollector,
	maxBreakMinutes int,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	if maxBreakMinutes <= 0 {
		maxBreakMinutes = DefaultMaxBreakMinutes
	}
	return &Service{
		repo:            repo,
		clock:           c,
		metrics:         m,
		locks:           newUserLocks(),
		maxBreakMinutes: maxBreakMinutes,
		newID:           uuid.NewString,
	}
}

// Now はサービスが使用している時計の現在時刻を返す。
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Start は新しいセッションを開始する。
// 非終端のセッションが残っている場合は、そのセッションを終了させてから作成する。
// 両者は1つのアトミックな操作としてストアに書き込まれる。
func (s *Service) Start(ctx context.Context, userID string) (*model.FocusSession, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.clock.Now()
	next := &model.FocusSession{
		ID:        s.newID(),
		UserID:    userID,
		Status:    model.FocusStatusActive,
		StartedAt: now,
	}

	completed, err := s.repo.ReplaceActive(ctx, userID, func(current *model.FocusSession) model.FocusSessionPatch {
		return completionPatch(current, now)
	}, next)
	if err != nil {
		return nil, s.fail(TransitionStart, userID, "", s.storeError(TransitionStart, "", err))
	}

	if completed != nil {
		slog.Info("previous focus session completed by start",
			slog.String("user_id", userID),
			slog.String("session_id", completed.ID),
			slog.Int64("total_focus_seconds", completed.TotalFocusSeconds),
			slog.Int64("total_break_seconds", completed.TotalBreakSeconds),
		)
		s.metrics.RecordTransition(TransitionEnd)
		s.metrics.RecordCompletedSession(completed.TotalFocusSeconds, completed.TotalBreakSeconds)
	}

	s.succeed(TransitionStart, next)
	return next, nil
}

// TakeBreak はactiveのセッションを休憩に入れる。
// minutesは1以上かつ上限以下でなければならない。入力検証は状態の参照より先に行う。
func (s *Service) TakeBreak(ctx context.Context, userID, sessionID string, minutes int) (*model.FocusSession, error) {
	if minutes <= 0 {
		return nil, s.fail(TransitionTakeBreak, userID, sessionID, model.NewInvalidInputError("休憩時間は1分以上を指定してください"))
	}
	if minutes > s.maxBreakMinutes {
		return nil, s.fail(TransitionTakeBreak, userID, sessionID,
			model.NewInvalidInputError(fmt.Sprintf("休憩時間は%d分以下を指定してください", s.maxBreakMinutes)))
	}

	return s.transition(ctx, TransitionTakeBreak, userID, sessionID,
		func(current *model.FocusSession, now time.Time) (model.FocusSessionPatch, error) {
			if current.Status != model.FocusStatusActive {
				return model.FocusSessionPatch{}, model.NewInvalidTransitionError("休憩", current.Status)
			}
			return breakPatch(current, now, minutes), nil
		})
}

// Resume は休憩中のセッションを再開する。
// 予定より早い再開も遅い再開も許可し、実際の休憩時間を加算する。
func (s *Service) Resume(ctx context.Context, userID, sessionID string) (*model.FocusSession, error) {
	return s.transition(ctx, TransitionResume, userID, sessionID,
		func(current *model.FocusSession, now time.Time) (model.FocusSessionPatch, error) {
			if current.Status != model.FocusStatusOnBreak {
				return model.FocusSessionPatch{}, model.NewInvalidTransitionError("再開", current.Status)
			}
			return resumePatch(current, now), nil
		})
}

// End はセッションを終了する。
// 終了済みのセッションはNotFoundとなり、集計値は変化しない。
func (s *Service) End(ctx context.Context, userID, sessionID string) (*model.FocusSession, error) {
	ended, err := s.transition(ctx, TransitionEnd, userID, sessionID,
		func(current *model.FocusSession, now time.Time) (model.FocusSessionPatch, error) {
			return completionPatch(current, now), nil
		})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCompletedSession(ended.TotalFocusSeconds, ended.TotalBreakSeconds)
	return ended, nil
}

// TakeBreakActive はユーザーの進行中セッションを休憩に入れる。
func (s *Service) TakeBreakActive(ctx context.Context, userID string, minutes int) (*model.FocusSession, error) {
	if minutes <= 0 || minutes > s.maxBreakMinutes {
		return s.TakeBreak(ctx, userID, "", minutes)
	}
	id, err := s.activeID(ctx, TransitionTakeBreak, userID)
	if err != nil {
		return nil, err
	}
	return s.TakeBreak(ctx, userID, id, minutes)
}

// ResumeActive はユーザーの進行中セッションを再開する。
func (s *Service) ResumeActive(ctx context.Context, userID string) (*model.FocusSession, error) {
	id, err := s.activeID(ctx, TransitionResume, userID)
	if err != nil {
		return nil, err
	}
	return s.Resume(ctx, userID, id)
}

// EndActive はユーザーの進行中セッションを終了する。
func (s *Service) EndActive(ctx context.Context, userID string) (*model.FocusSession, error) {
	id, err := s.activeID(ctx, TransitionEnd, userID)
	if err != nil {
		return nil, err
	}
	return s.End(ctx, userID, id)
}

// GetActive はユーザーの非終端セッションを返す。無い場合はnilを返す。
func (s *Service) GetActive(ctx context.Context, userID string) (*model.FocusSession, error) {
	session, err := s.repo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("進行中セッションの取得に失敗しました: %w", err)
	}
	return session, nil
}

// History は started_at が [from, to) のセッションを新しい順に返す。
func (s *Service) History(ctx context.Context, userID string, from, to time.Time) ([]*model.FocusSession, error) {
	if !from.Before(to) {
		return nil, model.NewInvalidInputError("fromはtoより前の日時を指定してください")
	}
	sessions, err := s.repo.ListByUserStartedBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("セッション履歴の取得に失敗しました: %w", err)
	}
	return sessions, nil
}

// patchFunc は現在のセッションから遷移のパッチを作る。遷移できない場合はエラーを返す。
type patchFunc func(current *model.FocusSession, now time.Time) (model.FocusSessionPatch, error)

// transition は対象セッションを読み、検証し、version条件付きで更新する。
// 検証に失敗した場合は何も書き込まない。
func (s *Service) transition(ctx context.Context, name, userID, sessionID string, build patchFunc) (*model.FocusSession, error) {
	// セッションIDはUUID。形式が異なるIDはストアに問い合わせずNotFoundとする
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, s.fail(name, userID, sessionID, model.NewSessionNotFoundError(sessionID))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, s.fail(name, userID, sessionID, fmt.Errorf("セッションの取得に失敗しました: %w", err))
	}
	// 他ユーザーのセッションと終了済みセッションは存在しないものとして扱う
	if current == nil || current.UserID != userID || current.Status.IsTerminal() {
		return nil, s.fail(name, userID, sessionID, model.NewSessionNotFoundError(sessionID))
	}

	now := s.clock.Now()
	patch, err := build(current, now)
	if err != nil {
		return nil, s.fail(name, userID, sessionID, err)
	}

	updated, err := s.repo.Update(ctx, current.ID, current.Version, patch)
	if err != nil {
		return nil, s.fail(name, userID, sessionID, s.storeError(name, sessionID, err))
	}

	s.succeed(name, updated)
	return updated, nil
}

// activeID はユーザーの進行中セッションのIDを返す。
func (s *Service) activeID(ctx context.Context, name, userID string) (string, error) {
	active, err := s.repo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return "", s.fail(name, userID, "", fmt.Errorf("進行中セッションの取得に失敗しました: %w", err))
	}
	if active == nil {
		return "", s.fail(name, userID, "", model.NewSessionNotFoundError(""))
	}
	return active.ID, nil
}

// storeError はリポジトリのエラーをAPIErrorに変換する。
func (s *Service) storeError(name, sessionID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, repository.ErrActiveSessionExists):
		return model.NewConcurrentUpdateError(name)
	case errors.Is(err, repository.ErrNotFound):
		return model.NewSessionNotFoundError(sessionID)
	default:
		return fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}
}

func (s *Service) succeed(name string, session *model.FocusSession) {
	slog.Info("focus session transition",
		slog.String("transition", name),
		slog.String("user_id", session.UserID),
		slog.String("session_id", session.ID),
		slog.String("status", string(session.Status)),
		slog.Int64("total_focus_seconds", session.TotalFocusSeconds),
		slog.Int64("total_break_seconds", session.TotalBreakSeconds),
		slog.Int("breaks_taken", session.BreaksTaken),
	)
	s.metrics.RecordTransition(name)
}

func (s *Service) fail(name, userID, sessionID string, err error) error {
	code := model.ErrCodeInternal
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
		slog.Info("focus session transition rejected",
			slog.String("transition", name),
			slog.String("user_id", userID),
			slog.String("session_id", sessionID),
			slog.String("code", code),
		)
	} else {
		slog.Error("focus session transition failed",
			slog.String("transition", name),
			slog.String("user_id", userID),
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.RecordTransitionError(name, code)
	return err
}
