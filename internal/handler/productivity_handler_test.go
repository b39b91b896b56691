package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/productivity"
)

// mockSummaryProvider はSummaryProviderのモック実装。
type mockSummaryProvider struct {
	summaryFn func(ctx context.Context, userID string) (*productivity.Summary, error)
}

func (m *mockSummaryProvider) Summary(ctx context.Context, userID string) (*productivity.Summary, error) {
	return m.summaryFn(ctx, userID)
}

func TestProductivityHandler_GetSummary_Success(t *testing.T) {
	sessions := []*model.FocusSession{{
		ID:                "s-1",
		UserID:            "user-123",
		Status:            model.FocusStatusCompleted,
		StartedAt:         testNow.Add(-2 * time.Hour),
		TotalFocusSeconds: 45 * 60,
		BreaksTaken:       1,
	}}
	summary := productivity.Summarize(productivity.Input{
		Sessions: sessions,
		Now:      testNow,
		Location: time.UTC,
		Goals:    &model.ProductivityGoals{DailyFocusGoal: 90, DailyBreaksGoal: 2, DailyTasksGoal: 3},
	})

	provider := &mockSummaryProvider{
		summaryFn: func(ctx context.Context, userID string) (*productivity.Summary, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return &summary, nil
		},
	}
	h := NewProductivityHandler(provider)

	w := httptest.NewRecorder()
	h.GetSummary(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/productivity/summary", nil), "user-123"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp summaryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Today.Date != "2026-03-04" {
		t.Errorf("today.date = %q, want %q", resp.Today.Date, "2026-03-04")
	}
	if resp.Today.FocusMinutes != 45 {
		t.Errorf("today.focusMinutes = %d, want 45", resp.Today.FocusMinutes)
	}
	if resp.Today.FocusGoalPercent != 50 {
		t.Errorf("today.focusGoalPercent = %d, want 50", resp.Today.FocusGoalPercent)
	}
	if resp.Today.BreaksGoalPercent != 50 {
		t.Errorf("today.breaksGoalPercent = %d, want 50", resp.Today.BreaksGoalPercent)
	}
	if len(resp.ThisWeek.Days) != 7 {
		t.Errorf("len(thisWeek.days) = %d, want 7", len(resp.ThisWeek.Days))
	}
	if resp.ThisWeek.Days[0].Date != "2026-03-01" {
		t.Errorf("thisWeek.days[0].date = %q, want %q", resp.ThisWeek.Days[0].Date, "2026-03-01")
	}
	if resp.Goals == nil || resp.Goals.DailyFocusGoal != 90 {
		t.Errorf("goals = %+v, want dailyFocusGoal 90", resp.Goals)
	}
}

func TestProductivityHandler_GetSummary_NoGoals_ReturnsNull(t *testing.T) {
	summary := productivity.Summarize(productivity.Input{Now: testNow, Location: time.UTC})
	provider := &mockSummaryProvider{
		summaryFn: func(ctx context.Context, userID string) (*productivity.Summary, error) {
			return &summary, nil
		},
	}
	h := NewProductivityHandler(provider)

	w := httptest.NewRecorder()
	h.GetSummary(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/productivity/summary", nil), "user-123"))

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if v, ok := raw["goals"]; !ok || v != nil {
		t.Errorf("goals = %v, want null", v)
	}
}

func TestProductivityHandler_GetSummary_Errors(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		err        error
		wantStatus int
	}{
		{"unauthenticated", "", nil, http.StatusUnauthorized},
		{"store failure", "user-123", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockSummaryProvider{
				summaryFn: func(ctx context.Context, userID string) (*productivity.Summary, error) {
					return nil, tt.err
				},
			}
			h := NewProductivityHandler(provider)

			req := httptest.NewRequest(http.MethodGet, "/api/productivity/summary", nil)
			if tt.userID != "" {
				req = withUserID(req, tt.userID)
			}
			w := httptest.NewRecorder()
			h.GetSummary(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
