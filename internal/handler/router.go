package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/focusboard/internal/metrics"
	"github.com/hitoshi/focusboard/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// ViewService はダッシュボードと拡張機能のビューを提供する。
type ViewService interface {
	DashboardViewer
	ExtensionViewer
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	SessionFinder      middleware.SessionFinder
	APIKeyResolver     middleware.APIKeyResolver
	CORSAllowedOrigins []string
	CSRFConfig         middleware.CSRFConfig
	RateLimiter        *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer

	// フォーカスセッション
	FocusService FocusServiceInterface
	Views        ViewService
	Summaries    SummaryProvider
	Location     *time.Location
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS
//	  ダッシュボード: SessionMiddleware → CSRF → RateLimitMiddleware(GeneralMiddleware)
//	  拡張機能:       APIKeyMiddleware → RateLimitMiddleware(ExtensionMiddleware)
//
// /health、/metrics、/api/csrf-token は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	focusHandler := NewFocusHandler(deps.FocusService, deps.Views, deps.Location)
	productivityHandler := NewProductivityHandler(deps.Summaries)
	extensionHandler := NewExtensionHandler(deps.FocusService, deps.Views)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- ダッシュボード（Cookieセッション） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/focus", func(r chi.Router) {
			r.Get("/active", focusHandler.GetActive)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", focusHandler.Start)
				r.Get("/", focusHandler.ListSessions)

				r.Route("/{id}", func(r chi.Router) {
					r.Post("/break", focusHandler.TakeBreak)
					r.Post("/resume", focusHandler.Resume)
					r.Post("/end", focusHandler.End)
				})
			})
		})

		r.Get("/api/productivity/summary", productivityHandler.GetSummary)
	})

	// --- ブラウザ拡張機能（APIキー） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAPIKeyMiddleware(deps.APIKeyResolver))
		r.Use(deps.RateLimiter.ExtensionMiddleware())

		r.Route("/api/extension", func(r chi.Router) {
			r.Get("/status", extensionHandler.GetStatus)

			r.Route("/focus", func(r chi.Router) {
				r.Post("/start", extensionHandler.Start)
				r.Post("/break", extensionHandler.TakeBreak)
				r.Post("/resume", extensionHandler.Resume)
				r.Post("/end", extensionHandler.End)
			})
		})
	})

	return r
}
