package focus

import (
	"testing"
	"time"

	"github.com/hitoshi/focusboard/internal/model"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestProject(t *testing.T) {
	t0 := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session *model.FocusSession
		now     time.Time
		want    Live
	}{
		{
			name:    "nil session",
			session: nil,
			now:     t0,
			want:    Live{},
		},
		{
			name: "active accrues elapsed minus breaks",
			session: &model.FocusSession{
				Status:            model.FocusStatusActive,
				StartedAt:         t0,
				TotalFocusSeconds: 600,
				TotalBreakSeconds: 120,
			},
			now:  t0.Add(780 * time.Second),
			want: Live{CurrentFocusSeconds: 660},
		},
		{
			name: "active before start clamps to zero",
			session: &model.FocusSession{
				Status:    model.FocusStatusActive,
				StartedAt: t0,
			},
			now:  t0.Add(-time.Minute),
			want: Live{CurrentFocusSeconds: 0},
		},
		{
			name: "on break shows frozen focus and remaining break",
			session: &model.FocusSession{
				Status:            model.FocusStatusOnBreak,
				StartedAt:         t0,
				TotalFocusSeconds: 600,
				BreakStartedAt:    timePtr(t0.Add(600 * time.Second)),
				BreakEndsAt:       timePtr(t0.Add(900 * time.Second)),
			},
			now:  t0.Add(720 * time.Second),
			want: Live{CurrentFocusSeconds: 600, RemainingBreakSeconds: 180},
		},
		{
			name: "on break past end is overdue with zero remaining",
			session: &model.FocusSession{
				Status:            model.FocusStatusOnBreak,
				StartedAt:         t0,
				TotalFocusSeconds: 600,
				BreakStartedAt:    timePtr(t0.Add(600 * time.Second)),
				BreakEndsAt:       timePtr(t0.Add(900 * time.Second)),
			},
			now:  t0.Add(1000 * time.Second),
			want: Live{CurrentFocusSeconds: 600, RemainingBreakSeconds: 0, BreakOverdue: true},
		},
		{
			name: "on break exactly at end is overdue",
			session: &model.FocusSession{
				Status:            model.FocusStatusOnBreak,
				StartedAt:         t0,
				TotalFocusSeconds: 600,
				BreakStartedAt:    timePtr(t0.Add(600 * time.Second)),
				BreakEndsAt:       timePtr(t0.Add(900 * time.Second)),
			},
			now:  t0.Add(900 * time.Second),
			want: Live{CurrentFocusSeconds: 600, BreakOverdue: true},
		},
		{
			name: "completed is frozen",
			session: &model.FocusSession{
				Status:            model.FocusStatusCompleted,
				StartedAt:         t0,
				EndedAt:           timePtr(t0.Add(time.Hour)),
				TotalFocusSeconds: 660,
				TotalBreakSeconds: 120,
			},
			now:  t0.Add(48 * time.Hour),
			want: Live{CurrentFocusSeconds: 660},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.session, tt.now)
			if got != tt.want {
				t.Errorf("Project() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompletionPatch_ClosesOpenBreak(t *testing.T) {
	t0 := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	s := &model.FocusSession{
		Status:            model.FocusStatusOnBreak,
		StartedAt:         t0,
		TotalFocusSeconds: 600,
		TotalBreakSeconds: 60,
		BreakStartedAt:    timePtr(t0.Add(660 * time.Second)),
		BreakEndsAt:       timePtr(t0.Add(960 * time.Second)),
	}

	s.Apply(completionPatch(s, t0.Add(760*time.Second)))

	if s.Status != model.FocusStatusCompleted {
		t.Errorf("Status = %s, want completed", s.Status)
	}
	if s.TotalBreakSeconds != 160 {
		t.Errorf("TotalBreakSeconds = %d, want 160", s.TotalBreakSeconds)
	}
	if s.TotalFocusSeconds != 600 {
		t.Errorf("TotalFocusSeconds = %d, want 600", s.TotalFocusSeconds)
	}
	if s.BreakStartedAt != nil || s.BreakEndsAt != nil {
		t.Error("break fields should be cleared")
	}
	if s.EndedAt == nil || !s.EndedAt.Equal(t0.Add(760*time.Second)) {
		t.Errorf("EndedAt = %v, want %v", s.EndedAt, t0.Add(760*time.Second))
	}
}
