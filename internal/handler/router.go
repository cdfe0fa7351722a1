package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recipes/internal/metrics"
	"github.com/hitoshi/recipes/internal/middleware"
	"github.com/hitoshi/recipes/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder        middleware.SessionFinder
	CORSAllowedOrigin    string
	RateLimiter          *middleware.RateLimiter
	RequireAuthForWrites bool
	MaxBodyBytes         int64
	Logger               *slog.Logger

	// メトリクス（nilの場合は記録・公開しない）
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// レシピ
	RecipeService RecipeServiceInterface
	Sanitizer     security.TextSanitizerService

	// 認証
	AuthService AuthServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → OptionalAuth → Logging → Metrics → BodyLimit → RateLimit(General)
//
// 更新系ルートにはRateLimit(Write)と、設定に応じてRequireAuthを追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewOptionalAuthMiddleware(deps.SessionFinder))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewBodyLimitMiddleware(maxBody))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	recipeHandler := NewRecipeHandler(deps.RecipeService, sanitizer)
	authHandler := NewAuthHandler(deps.AuthService)

	// 更新系ルート用のミドルウェア
	writeMiddlewares := chi.Middlewares{}
	if deps.RateLimiter != nil {
		writeMiddlewares = append(writeMiddlewares, deps.RateLimiter.WriteMiddleware())
	}
	if deps.RequireAuthForWrites {
		writeMiddlewares = append(writeMiddlewares, middleware.NewRequireAuthMiddleware())
	}

	// --- システム ---
	r.Get("/", Root)
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証 ---
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- レシピ ---
	r.Route("/recipes", func(r chi.Router) {
		r.Get("/", recipeHandler.ListRecipes)
		r.With(writeMiddlewares...).Post("/", recipeHandler.CreateRecipe)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", recipeHandler.GetRecipe)

			r.Group(func(r chi.Router) {
				r.Use(writeMiddlewares...)
				r.Put("/", recipeHandler.UpdateRecipe)
				r.Patch("/", recipeHandler.UpdateRecipe)
				r.Delete("/", recipeHandler.DeleteRecipe)
			})
		})
	})

	return r
}
