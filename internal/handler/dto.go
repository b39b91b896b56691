package handler

import (
	"time"

	"github.com/hitoshi/focusboard/internal/focus"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/productivity"
	"github.com/hitoshi/focusboard/internal/syncview"
)

// dateLayout は日別集計の日付表記。
const dateLayout = "2006-01-02"

// sessionResponse はフォーカスセッションのAPIレスポンス。
type sessionResponse struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt"`
	TotalFocusSeconds int64      `json:"totalFocusSeconds"`
	TotalBreakSeconds int64      `json:"totalBreakSeconds"`
	BreaksTaken       int        `json:"breaksTaken"`
	BreakStartedAt    *time.Time `json:"breakStartedAt"`
	BreakEndsAt       *time.Time `json:"breakEndsAt"`
	LastUpdatedAt     time.Time  `json:"lastUpdatedAt"`
}

// dashboardResponse はダッシュボード向けのビュー。
type dashboardResponse struct {
	Session               *sessionResponse `json:"session"`
	CurrentFocusSeconds   int64            `json:"currentFocusSeconds"`
	RemainingBreakSeconds int64            `json:"remainingBreakSeconds"`
	BreakOverdue          bool             `json:"breakOverdue"`
	ServerTime            time.Time        `json:"serverTime"`
	Summary               *summaryResponse `json:"summary"`
}

// extensionResponse はブラウザ拡張機能向けのビュー。
type extensionResponse struct {
	IsFocusing            bool       `json:"isFocusing"`
	IsOnBreak             bool       `json:"isOnBreak"`
	SessionID             *string    `json:"sessionId"`
	BlockedSites          []string   `json:"blockedSites"`
	BreakEndsAt           *time.Time `json:"breakEndsAt"`
	CurrentFocusSeconds   int64      `json:"currentFocusSeconds"`
	RemainingBreakSeconds int64      `json:"remainingBreakSeconds"`
	LastUpdatedAt         *time.Time `json:"lastUpdatedAt"`
	ServerTime            time.Time  `json:"serverTime"`
}

type goalsResponse struct {
	DailyFocusGoal  int `json:"dailyFocusGoal"`
	DailyBreaksGoal int `json:"dailyBreaksGoal"`
	DailyTasksGoal  int `json:"dailyTasksGoal"`
}

type dayResponse struct {
	Date         string `json:"date"`
	FocusSeconds int64  `json:"focusSeconds"`
	FocusMinutes int    `json:"focusMinutes"`
	Breaks       int    `json:"breaks"`
	Sessions     int    `json:"sessions"`
}

type todayResponse struct {
	dayResponse
	FocusGoalPercent      int `json:"focusGoalPercent"`
	BreaksGoalPercent     int `json:"breaksGoalPercent"`
	TaskCompletionPercent int `json:"taskCompletionPercent"`
	Score                 int `json:"score"`
}

type weekResponse struct {
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	FocusSeconds int64         `json:"focusSeconds"`
	FocusMinutes int           `json:"focusMinutes"`
	Breaks       int           `json:"breaks"`
	Sessions     int           `json:"sessions"`
	Days         []dayResponse `json:"days"`
}

// summaryResponse は生産性サマリーのAPIレスポンス。
type summaryResponse struct {
	Today       todayResponse  `json:"today"`
	ThisWeek    weekResponse   `json:"thisWeek"`
	Goals       *goalsResponse `json:"goals"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// historyItemResponse は履歴の1件。進行中のセッションは現在時点の表示値を持つ。
type historyItemResponse struct {
	sessionResponse
	CurrentFocusSeconds   int64 `json:"currentFocusSeconds"`
	RemainingBreakSeconds int64 `json:"remainingBreakSeconds"`
}

// historyResponse はセッション履歴のAPIレスポンス。
type historyResponse struct {
	From     time.Time             `json:"from"`
	To       time.Time             `json:"to"`
	Sessions []historyItemResponse `json:"sessions"`
}

func toSessionResponse(s *model.FocusSession) *sessionResponse {
	if s == nil {
		return nil
	}
	return &sessionResponse{
		ID:                s.ID,
		Status:            string(s.Status),
		StartedAt:         s.StartedAt.UTC(),
		EndedAt:           utcPtr(s.EndedAt),
		TotalFocusSeconds: s.TotalFocusSeconds,
		TotalBreakSeconds: s.TotalBreakSeconds,
		BreaksTaken:       s.BreaksTaken,
		BreakStartedAt:    utcPtr(s.BreakStartedAt),
		BreakEndsAt:       utcPtr(s.BreakEndsAt),
		LastUpdatedAt:     s.LastUpdatedAt.UTC(),
	}
}

func toHistoryItemResponse(s *model.FocusSession, now time.Time) historyItemResponse {
	live := focus.Project(s, now)
	return historyItemResponse{
		sessionResponse:       *toSessionResponse(s),
		CurrentFocusSeconds:   live.CurrentFocusSeconds,
		RemainingBreakSeconds: live.RemainingBreakSeconds,
	}
}

func toDashboardResponse(v *syncview.DashboardView) dashboardResponse {
	return dashboardResponse{
		Session:               toSessionResponse(v.Session),
		CurrentFocusSeconds:   v.Live.CurrentFocusSeconds,
		RemainingBreakSeconds: v.Live.RemainingBreakSeconds,
		BreakOverdue:          v.Live.BreakOverdue,
		ServerTime:            v.ServerTime.UTC(),
		Summary:               toSummaryResponse(v.Summary),
	}
}

func toExtensionResponse(v *syncview.ExtensionView) extensionResponse {
	resp := extensionResponse{
		IsFocusing:            v.IsFocusing,
		IsOnBreak:             v.IsOnBreak,
		BlockedSites:          v.BlockedSites,
		BreakEndsAt:           utcPtr(v.BreakEndsAt),
		CurrentFocusSeconds:   v.CurrentFocusSeconds,
		RemainingBreakSeconds: v.RemainingBreakSeconds,
		LastUpdatedAt:         utcPtr(v.LastUpdatedAt),
		ServerTime:            v.ServerTime.UTC(),
	}
	if v.SessionID != "" {
		id := v.SessionID
		resp.SessionID = &id
	}
	if resp.BlockedSites == nil {
		resp.BlockedSites = []string{}
	}
	return resp
}

func toSummaryResponse(s *productivity.Summary) *summaryResponse {
	if s == nil {
		return nil
	}
	days := make([]dayResponse, len(s.ThisWeek.Days))
	for i, d := range s.ThisWeek.Days {
		days[i] = toDayResponse(d)
	}

	resp := &summaryResponse{
		Today: todayResponse{
			dayResponse:           toDayResponse(s.Today.DaySummary),
			FocusGoalPercent:      s.Today.FocusGoalPercent,
			BreaksGoalPercent:     s.Today.BreaksGoalPercent,
			TaskCompletionPercent: s.Today.TaskCompletionPercent,
			Score:                 s.Today.Score,
		},
		ThisWeek: weekResponse{
			Start:        s.ThisWeek.Start,
			End:          s.ThisWeek.End,
			FocusSeconds: s.ThisWeek.FocusSeconds,
			FocusMinutes: s.ThisWeek.FocusMinutes,
			Breaks:       s.ThisWeek.Breaks,
			Sessions:     s.ThisWeek.Sessions,
			Days:         days,
		},
		GeneratedAt: s.GeneratedAt.UTC(),
	}
	if s.Goals != nil {
		resp.Goals = &goalsResponse{
			DailyFocusGoal:  s.Goals.DailyFocusGoal,
			DailyBreaksGoal: s.Goals.DailyBreaksGoal,
			DailyTasksGoal:  s.Goals.DailyTasksGoal,
		}
	}
	return resp
}

func toDayResponse(d productivity.DaySummary) dayResponse {
	return dayResponse{
		Date:         d.Date.Format(dateLayout),
		FocusSeconds: d.FocusSeconds,
		FocusMinutes: d.FocusMinutes,
		Breaks:       d.Breaks,
		Sessions:     d.Sessions,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
