package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/focusflow/backend/internal/metrics"
	"github.com/focusflow/backend/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	UserFinder        middleware.UserFinder
	Metrics           metrics.MetricsCollector

	// 監視
	MetricsHandler http.Handler
	HealthChecker  HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	UserService    UserServiceInterface
	TaskService    TaskServiceInterface
	ProjectService ProjectServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (Auth → RateLimit(General))
//
// 認証ミドルウェアと一般レート制限は認証必須グループにのみ適用する。
// ログイン系エンドポイントにはIP単位のレート制限を個別に適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	taskHandler := NewTaskHandler(deps.TaskService)
	projectHandler := NewProjectHandler(deps.ProjectService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.GoogleLogin)

		// ログイン試行はIP単位でレート制限する
		loginLimit := deps.RateLimiter.LoginMiddleware()
		r.With(loginLimit).Get("/google/callback", authHandler.GoogleCallback)
		r.With(loginLimit).Post("/mobile/google", authHandler.MobileGoogleLogin)
		r.With(loginLimit).Post("/login", authHandler.PasswordLogin)

		r.Post("/logout", authHandler.Logout)
	})

	// アカウント登録もログイン系レート制限の対象
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/api/users", userHandler.Register)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.UserFinder, deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.GetMe)
			r.Patch("/", userHandler.UpdateMe)
			r.Put("/", userHandler.UpdateMe)
			r.Put("/adhd-profile", userHandler.UpdateADHDProfile)
			r.Delete("/", userHandler.DeleteMe)
		})

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.List)
			r.Post("/", taskHandler.Create)

			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", taskHandler.Get)
				r.Patch("/", taskHandler.Update)
				r.Delete("/", taskHandler.Delete)
				r.Post("/complete", taskHandler.Complete)
			})
		})

		// プロジェクト管理
		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)
			r.Post("/", projectHandler.Create)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", projectHandler.Get)
				r.Patch("/", projectHandler.Update)
				r.Delete("/", projectHandler.Delete)
			})
		})
	})

	return r
}
