package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/focusboard/internal/model"
)

const apiKeyHeaderName = "X-API-Key"

// APIKeyResolver は拡張機能のAPIキーからユーザーIDを解決するインターフェース。
// 無効なキーにはINVALID_API_KEYのAPIErrorを返す。
type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, apiKey string) (string, error)
}

// NewAPIKeyMiddleware はブラウザ拡張機能向けのAPIキー認証ミドルウェアを返す。
// キーはX-API-Keyヘッダー、またはAuthorization: Bearer から読み取る。
// 解決したユーザーIDをリクエストコンテキストに注入する。
func NewAPIKeyMiddleware(resolver APIKeyResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apiKeyFromRequest(r)
			if key == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidAPIKeyError())
				return
			}

			userID, err := resolver.ResolveAPIKey(r.Context(), key)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					slog.Warn("extension api key rejected",
						slog.String("path", r.URL.Path),
						slog.String("remote_addr", r.RemoteAddr),
					)
					WriteErrorResponse(w, StatusForError(apiErr), apiErr)
					return
				}
				slog.Error("failed to resolve api key",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// apiKeyFromRequest はリクエストからAPIキーを取り出す。X-API-Keyを優先する。
func apiKeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(apiKeyHeaderName)); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
