package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/focusboard/internal/middleware"
	"github.com/hitoshi/focusboard/internal/model"
	"github.com/hitoshi/focusboard/internal/syncview"
)

// ExtensionViewer は拡張機能ビューを組み立てるインターフェース。
// syncview.Serviceが実装する。
type ExtensionViewer interface {
	Extension(ctx context.Context, userID string) (*syncview.ExtensionView, error)
	ExtensionFor(ctx context.Context, userID string, session *model.FocusSession) (*syncview.ExtensionView, error)
}

// ExtensionHandler はブラウザ拡張機能向けのHTTPハンドラー。
// 拡張機能はセッションIDを保持せず、常にユーザーの進行中セッションを操作する。
type ExtensionHandler struct {
	service FocusServiceInterface
	views   ExtensionViewer
}

// NewExtensionHandler はExtensionHandlerを生成する。
func NewExtensionHandler(service FocusServiceInterface, views ExtensionViewer) *ExtensionHandler {
	return &ExtensionHandler{
		service: service,
		views:   views,
	}
}

// GetStatus は拡張機能ビューを返す。
// GET /api/extension/status
func (h *ExtensionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidAPIKeyError())
		return
	}

	view, err := h.views.Extension(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toExtensionResponse(view))
}

// Start は新しいセッションを開始する。
// POST /api/extension/focus/start
func (h *ExtensionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, http.StatusCreated, func(ctx context.Context, userID string) (*model.FocusSession, error) {
		return h.service.Start(ctx, userID)
	})
}

// TakeBreak は進行中セッションを休憩に入れる。
// POST /api/extension/focus/break
func (h *ExtensionHandler) TakeBreak(w http.ResponseWriter, r *http.Request) {
	var req breakRequest
	if err := decodeJSONBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	h.command(w, r, http.StatusOK, func(ctx context.Context, userID string) (*model.FocusSession, error) {
		return h.service.TakeBreakActive(ctx, userID, req.Minutes)
	})
}

// Resume は休憩中のセッションを再開する。
// POST /api/extension/focus/resume
func (h *ExtensionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, http.StatusOK, h.service.ResumeActive)
}

// End は進行中セッションを終了する。
// POST /api/extension/focus/end
func (h *ExtensionHandler) End(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, http.StatusOK, h.service.EndActive)
}

// command は遷移を実行し、遷移後の拡張機能ビューを書き込む。
func (h *ExtensionHandler) command(
	w http.ResponseWriter,
	r *http.Request,
	statusCode int,
	run func(ctx context.Context, userID string) (*model.FocusSession, error),
) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidAPIKeyError())
		return
	}

	session, err := run(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	view, err := h.views.ExtensionFor(r.Context(), userID, session)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, statusCode, toExtensionResponse(view))
}
