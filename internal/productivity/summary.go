// Package productivity はフォーカスセッションの日次・週次集計と生産性スコアを提供する。
// 集計は保存せず、要求のたびにセッション一覧から再計算する。
package productivity

import (
	"math"
	"time"

	"github.com/hitoshi/focusboard/internal/focus"
	"github.com/hitoshi/focusboard/internal/model"
)

// スコアの重み
const (
	focusWeight = 0.5
	taskWeight  = 0.3
	breakWeight = 0.2
)

// Input は集計の入力。
type Input struct {
	Sessions              []*model.FocusSession
	Now                   time.Time
	Location              *time.Location
	Goals                 *model.ProductivityGoals // nilは未設定
	TaskCompletionPercent float64
}

// DaySummary は1日分の集計。
type DaySummary struct {
	Date         time.Time // その日の0時（集計タイムゾーン）
	FocusSeconds int64
	FocusMinutes int
	Breaks       int
	Sessions     int
}

// TodaySummary は今日の集計とスコア。
type TodaySummary struct {
	DaySummary
	FocusGoalPercent      int
	BreaksGoalPercent     int
	TaskCompletionPercent int
	Score                 int
}

// WeekSummary は今週（日曜始まり）の集計。
type WeekSummary struct {
	Start        time.Time
	End          time.Time
	FocusSeconds int64
	FocusMinutes int
	Breaks       int
	Sessions     int
	Days         []DaySummary // 日曜から土曜の7件
}

// Summary は生産性サマリー。
type Summary struct {
	Today       TodaySummary
	ThisWeek    WeekSummary
	Goals       *model.ProductivityGoals
	GeneratedAt time.Time
}

// WeekRange はnowを含む週の開始（日曜0時）と終了（翌週日曜0時）を返す。
func WeekRange(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(locationOrLocal(loc))
	y, m, d := local.Date()
	start := time.Date(y, m, d-int(local.Weekday()), 0, 0, 0, 0, local.Location())
	return start, start.AddDate(0, 0, 7)
}

// Summarize はInputから今日と今週の集計を計算する。
// 同じ入力に対しては常に同じ結果を返す。
func Summarize(in Input) Summary {
	loc := locationOrLocal(in.Location)
	weekStart, weekEnd := WeekRange(in.Now, loc)

	week := WeekSummary{
		Start: weekStart,
		End:   weekEnd,
		Days:  make([]DaySummary, 7),
	}
	for i := range week.Days {
		week.Days[i].Date = weekStart.AddDate(0, 0, i)
	}

	for _, s := range in.Sessions {
		started := s.StartedAt.In(loc)
		if started.Before(weekStart) || !started.Before(weekEnd) {
			continue
		}
		idx := int(started.Weekday())
		focusSeconds := focus.Project(s, in.Now).CurrentFocusSeconds

		day := &week.Days[idx]
		day.FocusSeconds += focusSeconds
		day.Breaks += s.BreaksTaken
		day.Sessions++

		week.FocusSeconds += focusSeconds
		week.Breaks += s.BreaksTaken
		week.Sessions++
	}

	for i := range week.Days {
		week.Days[i].FocusMinutes = minutesOf(week.Days[i].FocusSeconds)
	}
	week.FocusMinutes = minutesOf(week.FocusSeconds)

	todayDay := week.Days[int(in.Now.In(loc).Weekday())]
	taskPercent := clampPercent(in.TaskCompletionPercent)

	today := TodaySummary{
		DaySummary:            todayDay,
		FocusGoalPercent:      int(math.Round(goalPercent(todayDay.FocusMinutes, focusGoal(in.Goals)))),
		BreaksGoalPercent:     int(math.Round(goalPercent(todayDay.Breaks, breaksGoal(in.Goals)))),
		TaskCompletionPercent: int(math.Round(taskPercent)),
		Score:                 Score(todayDay.FocusMinutes, todayDay.Breaks, taskPercent, in.Goals),
	}

	return Summary{
		Today:       today,
		ThisWeek:    week,
		Goals:       in.Goals,
		GeneratedAt: in.Now,
	}
}

// Score は生産性スコアを0〜100の整数で返す。
// 目標が未設定または0の項目は0として扱う。
func Score(focusMinutes, breaks int, taskPercent float64, goals *model.ProductivityGoals) int {
	raw := focusWeight*goalPercent(focusMinutes, focusGoal(goals)) +
		taskWeight*clampPercent(taskPercent) +
		breakWeight*goalPercent(breaks, breaksGoal(goals))
	return int(math.Round(clampPercent(raw)))
}

// goalPercent は達成率を0〜100で返す。goalが0以下の場合は0。
func goalPercent(value, goal int) float64 {
	if goal <= 0 {
		return 0
	}
	return math.Min(100, float64(value)/float64(goal)*100)
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func focusGoal(g *model.ProductivityGoals) int {
	if g == nil {
		return 0
	}
	return g.DailyFocusGoal
}

func breaksGoal(g *model.ProductivityGoals) int {
	if g == nil {
		return 0
	}
	return g.DailyBreaksGoal
}

func minutesOf(seconds int64) int {
	return int(seconds / 60)
}

func locationOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
