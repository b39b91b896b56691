package focus

import (
	"time"

	"github.com/hitoshi/focusboard/internal/model"
)

// Live はセッションの現在時点での表示値。永続化はしない。
type Live struct {
	CurrentFocusSeconds   int64
	RemainingBreakSeconds int64
	BreakOverdue          bool // 予定の休憩終了時刻を過ぎても休憩中のまま
}

// Project はsessionのnow時点での表示値を計算する。
// ダッシュボード、拡張機能、集計のすべてがこの関数を通して値を得る。
func Project(s *model.FocusSession, now time.Time) Live {
	if s == nil {
		return Live{}
	}

	switch s.Status {
	case model.FocusStatusActive:
		return Live{CurrentFocusSeconds: accruedFocusSeconds(s, now)}
	case model.FocusStatusOnBreak:
		live := Live{CurrentFocusSeconds: s.TotalFocusSeconds}
		if s.BreakEndsAt != nil {
			live.RemainingBreakSeconds = max(0, secondsBetween(now, *s.BreakEndsAt))
			live.BreakOverdue = !now.Before(*s.BreakEndsAt)
		}
		return live
	default:
		return Live{CurrentFocusSeconds: s.TotalFocusSeconds}
	}
}

// accruedFocusSeconds は開始からの経過時間から休憩時間を引いた集中時間を返す。
// 確定済みの集中時間を下回ることはない。
func accruedFocusSeconds(s *model.FocusSession, now time.Time) int64 {
	focus := secondsBetween(s.StartedAt, now) - s.TotalBreakSeconds
	return max(s.TotalFocusSeconds, focus, 0)
}

// closedBreakSeconds は進行中の休憩をnowで締めた場合の累計休憩時間を返す。
func closedBreakSeconds(s *model.FocusSession, now time.Time) int64 {
	if s.Status != model.FocusStatusOnBreak || s.BreakStartedAt == nil {
		return s.TotalBreakSeconds
	}
	return s.TotalBreakSeconds + max(0, secondsBetween(*s.BreakStartedAt, now))
}

// secondsBetween はfromからtoまでの秒数を返す。端数は切り捨てる。
func secondsBetween(from, to time.Time) int64 {
	return int64(to.Sub(from) / time.Second)
}
