package productivity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/focus"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGoals struct {
	goals *model.ProductivityGoals
	err   error
}

func (s stubGoals) Goals(ctx context.Context, userID string) (*model.ProductivityGoals, error) {
	return s.goals, s.err
}

type stubTasks struct {
	percent float64
	err     error
}

func (s stubTasks) TaskCompletionPercent(ctx context.Context, userID string) (float64, error) {
	return s.percent, s.err
}

func TestService_Summary_FromStore(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFake(time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC))
	repo := repository.NewMemoryFocusSessionRepo(c)
	engine := focus.NewService(repo, c, nil, 0)

	// 1時間集中して終了、続けて30分集中中
	s, err := engine.Start(ctx, "user-1")
	require.NoError(t, err)
	c.Advance(30 * time.Minute)
	_, err = engine.TakeBreak(ctx, "user-1", s.ID, 5)
	require.NoError(t, err)
	c.Advance(5 * time.Minute)
	_, err = engine.Resume(ctx, "user-1", s.ID)
	require.NoError(t, err)
	c.Advance(30 * time.Minute)
	_, err = engine.End(ctx, "user-1", s.ID)
	require.NoError(t, err)

	_, err = engine.Start(ctx, "user-1")
	require.NoError(t, err)
	c.Advance(30 * time.Minute)

	// 別ユーザーは集計に含まれない
	_, err = engine.Start(ctx, "user-2")
	require.NoError(t, err)

	svc := NewService(repo,
		stubGoals{goals: &model.ProductivityGoals{DailyFocusGoal: 180, DailyBreaksGoal: 2}},
		stubTasks{percent: 40},
		c, time.UTC)

	summary, err := svc.Summary(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 90, summary.Today.FocusMinutes)
	assert.Equal(t, 1, summary.Today.Breaks)
	assert.Equal(t, 2, summary.Today.Sessions)
	assert.Equal(t, 90, summary.ThisWeek.FocusMinutes)
	// round(0.5×50 + 0.3×40 + 0.2×50) = 47
	assert.Equal(t, 47, summary.Today.Score)
	assert.True(t, summary.GeneratedAt.Equal(c.Now()))
}

func TestService_Summary_TaskProviderFailureTreatedAsZero(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFake(time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC))
	repo := repository.NewMemoryFocusSessionRepo(c)

	svc := NewService(repo,
		stubGoals{goals: &model.ProductivityGoals{DailyFocusGoal: 60, DailyBreaksGoal: 1}},
		stubTasks{percent: 90, err: errors.New("task tracker unavailable")},
		c, time.UTC)

	summary, err := svc.Summary(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Today.TaskCompletionPercent)
	assert.Equal(t, 0, summary.Today.Score)
}

func TestService_Summary_NilProviders(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFake(time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC))
	svc := NewService(repository.NewMemoryFocusSessionRepo(c), nil, nil, c, nil)

	summary, err := svc.Summary(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, summary.Goals)
	assert.Equal(t, 0, summary.Today.Score)
	assert.Equal(t, time.Local, svc.Location())
}

func TestService_Summary_GoalsErrorPropagates(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFake(time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC))
	goalsErr := errors.New("preferences unavailable")
	svc := NewService(repository.NewMemoryFocusSessionRepo(c), stubGoals{err: goalsErr}, nil, c, time.UTC)

	_, err := svc.Summary(ctx, "user-1")
	assert.ErrorIs(t, err, goalsErr)
}
