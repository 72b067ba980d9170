package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/booklib/internal/metrics"
	"github.com/hitoshi/booklib/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Gateway           *middleware.AuthGateway
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	SecurityHeaders   middleware.SecurityHeadersConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 監視
	HealthChecker   HealthChecker
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 蔵書
	LibraryService LibraryServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → Metrics → SecurityHeaders → CORS
//	  → (認証が必要なルートのみ) AuthGateway → RateLimit(General) → CSRF
//
// 認証ルート（/api/auth/*）とヘルスチェックはゲートウェイの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var panicRecorder middleware.PanicRecorder
	if deps.Metrics != nil {
		panicRecorder = deps.Metrics
	}

	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger, panicRecorder))
	if deps.Metrics != nil {
		r.Use(metrics.NewHTTPMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SecurityHeaders))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	var loginRecorder LoginRecorder
	var bookRecorder BookRecorder
	if deps.Metrics != nil {
		loginRecorder = deps.Metrics
		bookRecorder = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, loginRecorder)
	libraryHandler := NewLibraryHandler(deps.LibraryService, bookRecorder)
	userHandler := NewUserHandler()

	// --- 認証不要のルート ---

	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// 認証ルート（OAuthフロー）
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/google", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Get("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.Gateway.Middleware)
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/api/library", func(r chi.Router) {
			r.Get("/", libraryHandler.ListBooks)
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.WriteMiddleware()).Post("/", libraryHandler.CreateBook)
			} else {
				r.Post("/", libraryHandler.CreateBook)
			}
		})

		r.Get("/api/me", userHandler.Me)
	})

	return r
}
