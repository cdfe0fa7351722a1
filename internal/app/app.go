// Package app はアプリケーションの初期化と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hitoshi/recipes/internal/config"
	"github.com/hitoshi/recipes/internal/handler"
	"github.com/hitoshi/recipes/internal/logger"
	"github.com/hitoshi/recipes/internal/metrics"
	"github.com/hitoshi/recipes/internal/middleware"
	"github.com/hitoshi/recipes/internal/recipe"
	"github.com/hitoshi/recipes/internal/repository"
	"github.com/hitoshi/recipes/internal/security"
	"github.com/hitoshi/recipes/internal/session"
	"github.com/hitoshi/recipes/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、設定されたレベルでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンド省略時はserveとして起動する。
func Run(w io.Writer, args []string) error {
	cmd := NewRootCommand(w)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// Server はHTTP APIサーバーとその依存関係を保持する。
type Server struct {
	cfg         *config.Config
	repo        *recipe.Repository
	sessions    *session.Store
	rateLimiter *middleware.RateLimiter
	cleanupJob  *cleanup.CleanupJob // セッションが失効しない設定ではnil
	handler     http.Handler
}

// NewServer は永続化ファイルを読み込み、全依存関係をワイヤリングしたServerを生成する。
// 永続化ファイルが不正な場合はエラーを返し、ファイルには手を付けない。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	// 1. メトリクス
	var (
		collector      *metrics.Collector
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollector(reg)
		metricsHandler = metrics.Handler(reg)
	}

	// 2. リポジトリの初期化
	storage := repository.NewJSONFileRecipeStorage(cfg.StorePath)
	repoOpts := []recipe.Option{}
	if collector != nil {
		repoOpts = append(repoOpts, recipe.WithMetrics(collector))
	}
	repo, err := recipe.NewRepository(ctx, storage, repoOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipe store %s: %w", cfg.StorePath, err)
	}

	slog.Info("recipe store loaded",
		slog.String("path", storage.Path()),
		slog.Int("recipes", repo.Count()),
	)

	// 3. セッションストアの初期化
	var expiry session.Expiry = session.NeverExpire{}
	if cfg.SessionMaxAge > 0 {
		expiry = session.MaxAge(cfg.SessionMaxAge)
	}
	sessions := session.NewStore(session.WithExpiry(expiry))
	if collector != nil {
		collector.RegisterSessionGauge(sessions.Count)
	}

	var cleanupJob *cleanup.CleanupJob
	if cfg.SessionMaxAge > 0 {
		cleanupJob = cleanup.NewCleanupJob(sessions, slog.Default())
		cleanupJob.Interval = cfg.SessionSweepInterval
	}

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite),
	)

	deps := &handler.RouterDeps{
		SessionFinder:        sessions,
		CORSAllowedOrigin:    cfg.CORSAllowedOrigin,
		RateLimiter:          rateLimiter,
		RequireAuthForWrites: cfg.RequireAuthForWrites,
		MaxBodyBytes:         cfg.MaxBodyBytes,
		Logger:               slog.Default(),

		RecipeService: repo,
		Sanitizer:     security.NewTextSanitizer(),

		AuthService: sessions,
	}
	if collector != nil {
		deps.Metrics = collector
		deps.MetricsHandler = metricsHandler
	}

	return &Server{
		cfg:         cfg,
		repo:        repo,
		sessions:    sessions,
		rateLimiter: rateLimiter,
		cleanupJob:  cleanupJob,
		handler:     handler.NewRouter(deps),
	}, nil
}

// Handler はルーティング済みのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve はlnでHTTPリクエストの受け付けを開始し、ctxがキャンセルされるまでブロックする。
// キャンセル後はShutdownTimeoutを上限にグレースフルシャットダウンを行う。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.rateLimiter.Stop()

	if s.cleanupJob != nil {
		jobCtx, stopJob := context.WithCancel(ctx)
		defer stopJob()
		go s.cleanupJob.Start(jobCtx)
	}

	server := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", ln.Addr().String()),
		)
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully",
		slog.Int("recipes", s.repo.Count()),
		slog.Int("sessions", s.sessions.Count()),
	)
	return nil
}

// runServe はAPIサーバーモードで起動する。
func runServe(ctx context.Context, cfg *config.Config) error {
	srv, err := NewServer(ctx, cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", ":"+cfg.ServerPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.ServerPort, err)
	}

	return srv.Serve(ctx, ln)
}

// runCheckStore は永続化ファイルを読み込み、レシピ数をwに出力する。
// ファイルが不正な場合はエラーを返す。
func runCheckStore(ctx context.Context, w io.Writer, path string) error {
	storage := repository.NewJSONFileRecipeStorage(path)
	recipes, err := storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("recipe store %s is invalid: %w", path, err)
	}

	_, err = fmt.Fprintf(w, "%s: %d recipes\n", path, len(recipes))
	return err
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
