// Package model はドメインモデルを定義する。
package model

import "time"

// FocusStatus はフォーカスセッションの状態を表す。
type FocusStatus string

const (
	// FocusStatusActive は集中中の状態。
	FocusStatusActive FocusStatus = "active"
	// FocusStatusOnBreak は休憩中の状態。
	FocusStatusOnBreak FocusStatus = "on_break"
	// FocusStatusCompleted は終了済みの状態。以後セッションは変更されない。
	FocusStatusCompleted FocusStatus = "completed"
)

// IsTerminal は終端状態かどうかを返す。
func (s FocusStatus) IsTerminal() bool {
	return s == FocusStatusCompleted
}

// Valid は既知の状態値かどうかを返す。
func (s FocusStatus) Valid() bool {
	switch s {
	case FocusStatusActive, FocusStatusOnBreak, FocusStatusCompleted:
		return true
	default:
		return false
	}
}

// FocusSession はユーザーの1回分の集中セッションを表す。
// 1ユーザーにつき非終端（active/on_break）のセッションは高々1件。
type FocusSession struct {
	ID                string
	UserID            string
	Status            FocusStatus
	StartedAt         time.Time
	EndedAt           *time.Time
	TotalFocusSeconds int64
	TotalBreakSeconds int64
	BreaksTaken       int
	BreakStartedAt    *time.Time // on_break の間のみ設定
	BreakEndsAt       *time.Time // on_break の間のみ設定
	LastUpdatedAt     time.Time
	Version           int // 楽観ロック用。更新のたびに+1される
}

// Clone はセッションのディープコピーを返す。
func (s *FocusSession) Clone() *FocusSession {
	if s == nil {
		return nil
	}
	c := *s
	c.EndedAt = cloneTime(s.EndedAt)
	c.BreakStartedAt = cloneTime(s.BreakStartedAt)
	c.BreakEndsAt = cloneTime(s.BreakEndsAt)
	return &c
}

// FocusSessionPatch はFocusSessionの部分更新内容を表す。
// nilフィールドは変更しない。ClearBreakがtrueの場合は休憩時刻を消去する。
type FocusSessionPatch struct {
	Status            *FocusStatus
	EndedAt           *time.Time
	TotalFocusSeconds *int64
	TotalBreakSeconds *int64
	BreaksTaken       *int
	BreakStartedAt    *time.Time
	BreakEndsAt       *time.Time
	ClearBreak        bool
}

// Apply はパッチをセッションに適用する。
// lastUpdatedAt と version はストアが設定するためここでは変更しない。
func (s *FocusSession) Apply(p FocusSessionPatch) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.EndedAt != nil {
		s.EndedAt = cloneTime(p.EndedAt)
	}
	if p.TotalFocusSeconds != nil {
		s.TotalFocusSeconds = *p.TotalFocusSeconds
	}
	if p.TotalBreakSeconds != nil {
		s.TotalBreakSeconds = *p.TotalBreakSeconds
	}
	if p.BreaksTaken != nil {
		s.BreaksTaken = *p.BreaksTaken
	}
	if p.ClearBreak {
		s.BreakStartedAt = nil
		s.BreakEndsAt = nil
	}
	if p.BreakStartedAt != nil {
		s.BreakStartedAt = cloneTime(p.BreakStartedAt)
	}
	if p.BreakEndsAt != nil {
		s.BreakEndsAt = cloneTime(p.BreakEndsAt)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
