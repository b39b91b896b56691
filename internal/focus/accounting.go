package focus

import (
	"time"

	"github.com/hitoshi/focusboard/internal/model"
)

// breakPatch はactiveのセッションを休憩に入れるパッチを返す。
// 集中時間はこの時点で確定し、休憩中は加算されない。
func breakPatch(s *model.FocusSession, now time.Time, minutes int) model.FocusSessionPatch {
	status := model.FocusStatusOnBreak
	focus := accruedFocusSeconds(s, now)
	breaks := s.BreaksTaken + 1
	endsAt := now.Add(time.Duration(minutes) * time.Minute)

	return model.FocusSessionPatch{
		Status:            &status,
		TotalFocusSeconds: &focus,
		BreaksTaken:       &breaks,
		BreakStartedAt:    &now,
		BreakEndsAt:       &endsAt,
	}
}

// resumePatch は休憩中のセッションを再開するパッチを返す。
// 休憩時間は予定時間ではなく実際の経過時間で加算する。
func resumePatch(s *model.FocusSession, now time.Time) model.FocusSessionPatch {
	status := model.FocusStatusActive
	breakSeconds := closedBreakSeconds(s, now)

	return model.FocusSessionPatch{
		Status:            &status,
		TotalBreakSeconds: &breakSeconds,
		ClearBreak:        true,
	}
}

// completionPatch はセッションを終了させるパッチを返す。
// 休憩中であれば先に休憩を締め、残りの経過時間を集中時間とする。
func completionPatch(s *model.FocusSession, now time.Time) model.FocusSessionPatch {
	status := model.FocusStatusCompleted
	breakSeconds := closedBreakSeconds(s, now)
	focus := max(s.TotalFocusSeconds, secondsBetween(s.StartedAt, now)-breakSeconds, 0)

	return model.FocusSessionPatch{
		Status:            &status,
		EndedAt:           &now,
		TotalFocusSeconds: &focus,
		TotalBreakSeconds: &breakSeconds,
		ClearBreak:        true,
	}
}
