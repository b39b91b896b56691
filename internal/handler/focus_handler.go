package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/focusboard/internal/middleware"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/productivity"
	"github.com/hitoshi/focusboard/internal/syncview"
)

// maxHistoryRange は履歴の取得期間の上限。
const maxHistoryRange = 92 * 24 * time.Hour

// FocusServiceInterface はフォーカスハンドラーが必要とするサービスインターフェース。
// focus.Serviceが実装する。
type FocusServiceInterface interface {
	Now() time.Time
	Start(ctx context.Context, userID string) (*model.FocusSession, error)
	TakeBreak(ctx context.Context, userID, sessionID string, minutes int) (*model.FocusSession, error)
	Resume(ctx context.Context, userID, sessionID string) (*model.FocusSession, error)
	End(ctx context.Context, userID, sessionID string) (*model.FocusSession, error)
	TakeBreakActive(ctx context.Context, userID string, minutes int) (*model.FocusSession, error)
	ResumeActive(ctx context.Context, userID string) (*model.FocusSession, error)
	EndActive(ctx context.Context, userID string) (*model.FocusSession, error)
	History(ctx context.Context, userID string, from, to time.Time) ([]*model.FocusSession, error)
}

// DashboardViewer はダッシュボードビューを組み立てるインターフェース。
// syncview.Serviceが実装する。
type DashboardViewer interface {
	Dashboard(ctx context.Context, userID string) (*syncview.DashboardView, error)
	DashboardFor(ctx context.Context, userID string, session *model.FocusSession) (*syncview.DashboardView, error)
}

// FocusHandler はダッシュボードからのフォーカスセッション操作のHTTPハンドラー。
type FocusHandler struct {
	service  FocusServiceInterface
	views    DashboardViewer
	location *time.Location
}

// NewFocusHandler はFocusHandlerを生成する。
// locationは履歴の既定期間（今週）の算出に使用する。
func NewFocusHandler(service FocusServiceInterface, views DashboardViewer, location *time.Location) *FocusHandler {
	if location == nil {
		location = time.Local
	}
	return &FocusHandler{
		service:  service,
		views:    views,
		location: location,
	}
}

// breakRequest は休憩開始リクエストのボディ。
type breakRequest struct {
	Minutes int `json:"minutes"`
}

// Start は新しいフォーカスセッションを開始する。
// POST /api/focus/sessions
func (h *FocusHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	session, err := h.service.Start(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeDashboard(w, r, http.StatusCreated, userID, session)
}

// GetActive は進行中セッションのダッシュボードビューを返す。
// GET /api/focus/active
func (h *FocusHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	view, err := h.views.Dashboard(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDashboardResponse(view))
}

// ListSessions はセッション履歴を返す。
// GET /api/focus/sessions?from=RFC3339&to=RFC3339
// 両方省略した場合は今週、片方のみの場合はそこから7日間とする。
func (h *FocusHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	from, to, err := h.historyRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	sessions, err := h.service.History(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := h.service.Now()
	resp := historyResponse{
		From:     from.UTC(),
		To:       to.UTC(),
		Sessions: make([]historyItemResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toHistoryItemResponse(s, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

// TakeBreak はセッションを休憩に入れる。
// POST /api/focus/sessions/{id}/break
func (h *FocusHandler) TakeBreak(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req breakRequest
	if err := decodeJSONBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.TakeBreak(r.Context(), userID, chi.URLParam(r, "id"), req.Minutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeDashboard(w, r, http.StatusOK, userID, session)
}

// Resume は休憩中のセッションを再開する。
// POST /api/focus/sessions/{id}/resume
func (h *FocusHandler) Resume(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	session, err := h.service.Resume(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeDashboard(w, r, http.StatusOK, userID, session)
}

// End はセッションを終了する。
// POST /api/focus/sessions/{id}/end
func (h *FocusHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	session, err := h.service.End(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeDashboard(w, r, http.StatusOK, userID, session)
}

// writeDashboard は遷移後のセッションを表示するダッシュボードビューを書き込む。
func (h *FocusHandler) writeDashboard(w http.ResponseWriter, r *http.Request, statusCode int, userID string, session *model.FocusSession) {
	view, err := h.views.DashboardFor(r.Context(), userID, session)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, statusCode, toDashboardResponse(view))
}

// historyRange はクエリパラメータから履歴の取得期間を決める。
func (h *FocusHandler) historyRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")

	var from, to time.Time
	var err error
	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return time.Time{}, time.Time{}, model.NewInvalidInputError("fromはRFC3339形式で指定してください")
		}
	}
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return time.Time{}, time.Time{}, model.NewInvalidInputError("toはRFC3339形式で指定してください")
		}
	}

	switch {
	case fromStr == "" && toStr == "":
		from, to = productivity.WeekRange(h.service.Now(), h.location)
	case toStr == "":
		to = from.AddDate(0, 0, 7)
	case fromStr == "":
		from = to.AddDate(0, 0, -7)
	}

	if to.Sub(from) > maxHistoryRange {
		return time.Time{}, time.Time{}, model.NewInvalidInputError("取得期間は92日以内で指定してください")
	}
	return from, to, nil
}
