// Package syncview はダッシュボードと拡張機能に返すビューを構築する。
// どちらのビューも保存せず、ストアの状態から毎回組み立てる。
package syncview

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/focus"
	"github.com/hitoshi/focusboard/internal/metrics"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/productivity"
)

// SessionReader はユーザーの進行中セッションを返す。
type SessionReader interface {
	GetActive(ctx context.Context, userID string) (*model.FocusSession, error)
}

// SummaryReader は指定時刻での生産性サマリーを返す。
type SummaryReader interface {
	SummaryAt(ctx context.Context, userID string, now time.Time) (*productivity.Summary, error)
}

// BlockedSitesProvider はユーザーのブロック対象サイトを返す。
type BlockedSitesProvider interface {
	BlockedSites(ctx context.Context, userID string) ([]string, error)
}

// APIKeyResolver は拡張機能のAPIキーからユーザーIDを解決する。未登録の場合は空文字を返す。
type APIKeyResolver interface {
	UserIDByAPIKey(ctx context.Context, apiKey string) (string, error)
}

// DashboardView はダッシュボード向けのビュー。Sessionはnilの場合がある。
type DashboardView struct {
	Session    *model.FocusSession
	Live       focus.Live
	ServerTime time.Time
	Summary    *productivity.Summary
}

// ExtensionView は拡張機能向けの最小ビュー。
type ExtensionView struct {
	IsFocusing            bool
	IsOnBreak             bool
	SessionID             string
	BlockedSites          []string
	BreakEndsAt           *time.Time
	CurrentFocusSeconds   int64
	RemainingBreakSeconds int64
	LastUpdatedAt         *time.Time
	ServerTime            time.Time
}

// Service はビューを組み立てるサービス。
type Service struct {
	sessions  SessionReader
	summaries SummaryReader
	sites     BlockedSitesProvider
	keys      APIKeyResolver
	clock     clock.Clock
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	sessions SessionReader,
	summaries SummaryReader,
	sites BlockedSitesProvider,
	keys APIKeyResolver,
	c clock.Clock,
	m metrics.MetricsCollector,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		sessions:  sessions,
		summaries: summaries,
		sites:     sites,
		keys:      keys,
		clock:     c,
		metrics:   m,
	}
}

// Dashboard はユーザーの現在のダッシュボードビューを返す。
func (s *Service) Dashboard(ctx context.Context, userID string) (*DashboardView, error) {
	session, err := s.sessions.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.DashboardFor(ctx, userID, session)
}

// DashboardFor は指定セッションを表示するダッシュボードビューを返す。
// 遷移直後の応答で、遷移後のセッション（終了済みを含む）を表示するために使用する。
func (s *Service) DashboardFor(ctx context.Context, userID string, session *model.FocusSession) (*DashboardView, error) {
	now := s.clock.Now()

	summary, err := s.summaries.SummaryAt(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	return &DashboardView{
		Session:    session,
		Live:       focus.Project(session, now),
		ServerTime: now,
		Summary:    summary,
	}, nil
}

// ResolveAPIKey はAPIキーからユーザーIDを解決する。
// キーが空または未登録の場合はInvalidAPIKeyエラーを返す。
func (s *Service) ResolveAPIKey(ctx context.Context, apiKey string) (string, error) {
	if apiKey == "" {
		return "", model.NewInvalidAPIKeyError()
	}
	userID, err := s.keys.UserIDByAPIKey(ctx, apiKey)
	if err != nil {
		return "", fmt.Errorf("APIキーの照合に失敗しました: %w", err)
	}
	if userID == "" {
		return "", model.NewInvalidAPIKeyError()
	}
	return userID, nil
}

// Extension はユーザーの現在の拡張機能ビューを返す。
func (s *Service) Extension(ctx context.Context, userID string) (*ExtensionView, error) {
	session, err := s.sessions.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordExtensionPoll()
	return s.ExtensionFor(ctx, userID, session)
}

// ExtensionFor は指定セッションから拡張機能ビューを組み立てる。
// ブロック対象サイトは集中中のみ返す。
func (s *Service) ExtensionFor(ctx context.Context, userID string, session *model.FocusSession) (*ExtensionView, error) {
	now := s.clock.Now()
	view := &ExtensionView{
		BlockedSites: []string{},
		ServerTime:   now,
	}
	if session == nil {
		return view, nil
	}

	live := focus.Project(session, now)
	lastUpdated := session.LastUpdatedAt
	view.SessionID = session.ID
	view.IsFocusing = session.Status == model.FocusStatusActive
	view.IsOnBreak = session.Status == model.FocusStatusOnBreak
	view.CurrentFocusSeconds = live.CurrentFocusSeconds
	view.RemainingBreakSeconds = live.RemainingBreakSeconds
	view.LastUpdatedAt = &lastUpdated
	if view.IsOnBreak && session.BreakEndsAt != nil {
		endsAt := *session.BreakEndsAt
		view.BreakEndsAt = &endsAt
	}

	if view.IsFocusing {
		sites, err := s.sites.BlockedSites(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("ブロック対象サイトの取得に失敗しました: %w", err)
		}
		if sites != nil {
			view.BlockedSites = sites
		}
	}

	return view, nil
}
