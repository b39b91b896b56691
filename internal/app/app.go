package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/hitoshi/focusboard/internal/config"
	"github.com/hitoshi/focusboard/internal/database"
	"github.com/hitoshi/focusboard/internal/focus"
	"github.com/hitoshi/focusboard/internal/handler"
	"github.com/hitoshi/focusboard/internal/logger"
	"github.com/hitoshi/focusboard/internal/metrics"
	"github.com/hitoshi/focusboard/internal/middleware"
	"github.com/hitoshi/focusboard/internal/preferences"
	"github.com/hitoshi/focusboard/internal/productivity"
	"github.com/hitoshi/focusboard/internal/syncview"
	"github.com/hitoshi/focusboard/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と hash-api-key は軽量サブコマンドのため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandHashAPIKey:
		return runHashAPIKey(w, args[1:])
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// serverDeps はAPIサーバーの構築に必要な外部リソース。
type serverDeps struct {
	store    *store
	prefs    *preferences.Store
	clock    clock.Clock
	registry *prometheus.Registry
}

// newRegistry はプロセスとGoランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// buildRouter はサービス層を組み立て、ルーターとレートリミッターを返す。
// 呼び出し側はサーバー停止後にRateLimiter.Stopを呼ぶこと。
func buildRouter(cfg *config.Config, deps serverDeps) (http.Handler, *middleware.RateLimiter) {
	collector := metrics.NewCollector(deps.registry)

	engine := focus.NewService(deps.store.focusSessions, deps.clock, collector, cfg.MaxBreakMinutes)
	summaries := productivity.NewService(deps.store.focusSessions, deps.prefs, deps.prefs, deps.clock, cfg.ReportTimezone)
	views := syncview.NewService(engine, summaries, deps.prefs, deps.prefs, deps.clock, collector)

	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitExtension),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Metrics:            collector,
		SessionFinder:      deps.store.loginSessions,
		APIKeyResolver:     views,
		CORSAllowedOrigins: cfg.AllowedOrigins(),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:     rateLimiter,
		HealthChecker:   deps.store.db,
		MetricsGatherer: deps.registry,
		FocusService:    engine,
		Views:           views,
		Summaries:       summaries,
		Location:        cfg.ReportTimezone,
	})

	return router, rateLimiter
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. ユーザー設定の読み込み
	prefs, err := preferences.LoadFile(cfg.PreferencesFile)
	if err != nil {
		return err
	}

	// 2. ストアの初期化
	c := clock.Real{}
	st, err := openStore(ctx, cfg, c)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// 3. ルーターの構築
	router, rateLimiter := buildRouter(cfg, serverDeps{
		store:    st,
		prefs:    prefs,
		clock:    c,
		registry: newRegistry(),
	})
	defer rateLimiter.Stop()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れログインセッションのクリーンアップジョブを定期実行する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	c := clock.Real{}
	st, err := openStore(ctx, cfg, c)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	cleanup.NewCleanupJob(st.loginSessions, c, slog.Default()).Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if cfg.StoreDriver == config.StoreDriverSQLite {
		db, err := database.OpenSQLite(database.SQLitePathFromURL(cfg.DatabaseURL))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.RunSQLiteMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// runHashAPIKey は拡張機能のAPIキーを設定ファイルに記載する形式で出力する。
// 使い方: focusboard hash-api-key <key>
func runHashAPIKey(w io.Writer, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: focusboard hash-api-key <key>")
	}
	_, err := fmt.Fprintln(w, preferences.HashAPIKey(args[0]))
	return err
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
