package syncview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/focus"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/preferences"
	"github.com/hitoshi/focusboard/internal/productivity"
	"github.com/hitoshi/focusboard/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)

type fixture struct {
	views  *Service
	engine *focus.Service
	clock  *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	prefs, err := preferences.Load(strings.NewReader(`
users:
  - id: user-1
    goals:
      daily_focus_goal: 60
      daily_breaks_goal: 2
    blocked_sites: [twitter.com, youtube.com]
    api_key_sha256: "` + preferences.HashAPIKey("ext-key") + `"
`))
	require.NoError(t, err)

	c := clock.NewFake(t0)
	repo := repository.NewMemoryFocusSessionRepo(c)
	engine := focus.NewService(repo, c, nil, 0)
	summaries := productivity.NewService(repo, prefs, prefs, c, time.UTC)

	return &fixture{
		views:  NewService(engine, summaries, prefs, prefs, c, nil),
		engine: engine,
		clock:  c,
	}
}

func TestDashboard_NoSession(t *testing.T) {
	f := newFixture(t)

	view, err := f.views.Dashboard(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, view.Session)
	assert.Equal(t, focus.Live{}, view.Live)
	assert.True(t, view.ServerTime.Equal(t0))
	require.NotNil(t, view.Summary)
	assert.Equal(t, 0, view.Summary.Today.FocusMinutes)
}

func TestDashboard_ActiveSessionLiveValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.engine.Start(ctx, "user-1")
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)

	view, err := f.views.Dashboard(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, view.Session)
	assert.Equal(t, s.ID, view.Session.ID)
	assert.Equal(t, int64(1800), view.Live.CurrentFocusSeconds)
	assert.Equal(t, 30, view.Summary.Today.FocusMinutes)
	// 集中時間50% × 0.5 = 25
	assert.Equal(t, 25, view.Summary.Today.Score)
}

func TestDashboardFor_CompletedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.engine.Start(ctx, "user-1")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	ended, err := f.engine.End(ctx, "user-1", s.ID)
	require.NoError(t, err)

	view, err := f.views.DashboardFor(ctx, "user-1", ended)
	require.NoError(t, err)
	assert.Equal(t, model.FocusStatusCompleted, view.Session.Status)
	assert.Equal(t, int64(3600), view.Live.CurrentFocusSeconds)
	assert.Equal(t, 60, view.Summary.Today.FocusMinutes)
}

func TestDashboardAndExtension_AgreeOnLiveValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.engine.Start(ctx, "user-1")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	_, err = f.engine.TakeBreak(ctx, "user-1", s.ID, 5)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	dash, err := f.views.Dashboard(ctx, "user-1")
	require.NoError(t, err)
	ext, err := f.views.Extension(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, dash.Live.CurrentFocusSeconds, ext.CurrentFocusSeconds)
	assert.Equal(t, dash.Live.RemainingBreakSeconds, ext.RemainingBreakSeconds)
	assert.Equal(t, int64(180), ext.RemainingBreakSeconds)
}

func TestResolveAPIKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, err := f.views.ResolveAPIKey(ctx, "ext-key")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	for _, key := range []string{"", "wrong"} {
		_, err := f.views.ResolveAPIKey(ctx, key)
		require.Error(t, err)
		assert.True(t, model.HasCode(err, model.ErrCodeInvalidAPIKey))
	}
}

func TestExtension_States(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// セッションなし
	view, err := f.views.Extension(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, view.IsFocusing)
	assert.False(t, view.IsOnBreak)
	assert.Empty(t, view.SessionID)
	assert.NotNil(t, view.BlockedSites)
	assert.Empty(t, view.BlockedSites)
	assert.Nil(t, view.LastUpdatedAt)

	// 集中中はブロック対象サイトを返す
	s, err := f.engine.Start(ctx, "user-1")
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	view, err = f.views.Extension(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, view.IsFocusing)
	assert.False(t, view.IsOnBreak)
	assert.Equal(t, s.ID, view.SessionID)
	assert.Equal(t, []string{"twitter.com", "youtube.com"}, view.BlockedSites)
	assert.Equal(t, int64(90), view.CurrentFocusSeconds)
	assert.Nil(t, view.BreakEndsAt)
	require.NotNil(t, view.LastUpdatedAt)
	assert.True(t, view.LastUpdatedAt.Equal(t0))

	// 休憩中はブロックしない
	_, err = f.engine.TakeBreak(ctx, "user-1", s.ID, 5)
	require.NoError(t, err)

	view, err = f.views.Extension(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, view.IsFocusing)
	assert.True(t, view.IsOnBreak)
	assert.Empty(t, view.BlockedSites)
	require.NotNil(t, view.BreakEndsAt)
	assert.True(t, view.BreakEndsAt.Equal(t0.Add(90*time.Second+5*time.Minute)))
	assert.Equal(t, int64(300), view.RemainingBreakSeconds)
	assert.True(t, view.LastUpdatedAt.Equal(t0.Add(90*time.Second)))
}

type failingSessions struct{ err error }

func (f failingSessions) GetActive(ctx context.Context, userID string) (*model.FocusSession, error) {
	return nil, f.err
}

type failingSites struct{ err error }

func (f failingSites) BlockedSites(ctx context.Context, userID string) ([]string, error) {
	return nil, f.err
}

func TestErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("store down")
	c := clock.NewFake(t0)

	svc := NewService(failingSessions{err: storeErr}, nil, nil, nil, c, nil)
	_, err := svc.Dashboard(ctx, "user-1")
	assert.ErrorIs(t, err, storeErr)
	_, err = svc.Extension(ctx, "user-1")
	assert.ErrorIs(t, err, storeErr)

	sitesErr := errors.New("preferences down")
	svc = NewService(nil, nil, failingSites{err: sitesErr}, nil, c, nil)
	_, err = svc.ExtensionFor(ctx, "user-1", &model.FocusSession{
		ID: "s", UserID: "user-1", Status: model.FocusStatusActive, StartedAt: t0, LastUpdatedAt: t0,
	})
	assert.ErrorIs(t, err, sitesErr)
}
