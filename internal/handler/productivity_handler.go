package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/focusboard/internal/middleware"
	"github.com/hitoshi/focusboard/internal/productivity"
)

// SummaryProvider は生産性サマリーを返すインターフェース。
// productivity.Serviceが実装する。
type SummaryProvider interface {
	Summary(ctx context.Context, userID string) (*productivity.Summary, error)
}

// ProductivityHandler は生産性サマリーのHTTPハンドラー。
type ProductivityHandler struct {
	summaries SummaryProvider
}

// NewProductivityHandler はProductivityHandlerを生成する。
func NewProductivityHandler(summaries SummaryProvider) *ProductivityHandler {
	return &ProductivityHandler{summaries: summaries}
}

// GetSummary は今日と今週の集計とスコアを返す。
// GET /api/productivity/summary
func (h *ProductivityHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	summary, err := h.summaries.Summary(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}
