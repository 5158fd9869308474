package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/foodshare/internal/metrics"
	"github.com/hitoshi/foodshare/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Store             HealthChecker
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// メトリクス（nilの場合は /metrics を公開しない）
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// 認証
	TokenIssuer TokenIssuer
	AuthConfig  AuthHandlerConfig

	// 食品リスト・リクエスト
	FoodService    FoodServiceInterface
	RequestService RequestServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  /auth/*:  RateLimit(General) → (/me のみ) Auth
//	  /api/*:   Readiness → RateLimit(General) → (認証が必要なルートのみ) Auth → CSRF
//
// API全般のレート制限は認証より前に置き、不正なトークンによる試行もIP単位で制限する。
// 作成系のレート制限は認証後にユーザー単位で適用する。
//
// /health と /metrics はストアの状態に関係なく応答する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{HSTS: deps.CSRFConfig.CookieSecure}))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authMW := middleware.NewAuthMiddleware(deps.TokenVerifier)
	csrfMW := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	authHandler := NewAuthHandler(deps.TokenIssuer, deps.AuthConfig)
	foodHandler := NewFoodHandler(deps.FoodService)
	requestHandler := NewRequestHandler(deps.RequestService)
	healthHandler := NewHealthHandler(deps.Store)

	r.Get("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証ルート ---
	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Post("/jwt", authHandler.IssueToken)
		r.Post("/logout", authHandler.Logout)
		r.With(authMW).Get("/me", authHandler.Me)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewReadinessMiddleware(deps.Store))

			// --- 認証不要のルート ---
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.GeneralMiddleware())
				r.Get("/foods/featured", foodHandler.Featured)
				r.Get("/foods/available", foodHandler.ListAvailable)
				r.Get("/foods/{id}", foodHandler.Get)
			})

			// --- 認証が必要なルート ---
			// ミドルウェアスタック: RateLimit(General) → Auth → CSRF
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.GeneralMiddleware())
				r.Use(authMW)
				r.Use(csrfMW)

				// POST /api/foods - 食品リスト登録（登録専用レート制限を追加）
				r.With(deps.RateLimiter.CreateMiddleware()).Post("/foods", foodHandler.Create)
				r.Patch("/foods/{id}/request", foodHandler.MarkRequested)
				r.Put("/foods/{id}", foodHandler.Update)
				r.Delete("/foods/{id}", foodHandler.Delete)
				r.Get("/my-foods", foodHandler.ListMine)

				r.With(deps.RateLimiter.CreateMiddleware()).Post("/requests", requestHandler.Create)
				r.Get("/my-requests", requestHandler.ListMine)
			})
		})
	})

	return r
}
