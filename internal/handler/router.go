package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/neurabot/neurabot/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionVerifier   middleware.SessionVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HTTPMetrics       middleware.HTTPMetricsRecorder
	Logger            *slog.Logger

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	Config Config

	// 認証
	AuthService AuthServiceInterface
	AuthEvents  AuthEventSource
	Counter     MetadataCounter

	// オンボーディング・プロフィール
	Gate           OnboardingGate
	ProfileService ProfileServiceInterface

	// ダッシュボード
	DashboardService DashboardServiceInterface

	// StreamShutdown が閉じられると開いているSSEストリームを終了する。
	// http.Server.RegisterOnShutdownから閉じる。nilの場合はクライアントの切断まで続く。
	StreamShutdown <-chan struct{}
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → Metrics → SecurityHeaders → CORS
//	  → (保護ルート) CSRF → Session → RateLimit(General)
//
// 認証ルート（/auth/*）、オンボーディング画面、ヘルスチェックはセッション必須の
// ミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.Config.CookieSecure,
		CookieDomain: deps.Config.CookieDomain,
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Config)
	onboardingHandler := NewOnboardingHandler(deps.Gate, deps.ProfileService, deps.Config)
	dashboardHandler := NewDashboardHandler(
		deps.DashboardService, deps.Counter, deps.ProfileService, deps.AuthEvents, deps.Config,
	)
	dashboardHandler.CloseStreamsOn(deps.StreamShutdown)

	// --- 認証不要のルート ---

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Get("/callback", authHandler.CallbackRedirect)
		r.Get("/session", authHandler.Session)
		r.Get("/me", authHandler.Me)
		r.With(middleware.NewCSRFMiddleware(csrfConfig)).Post("/logout", authHandler.Logout)
	})

	// 画面ルート: セッションがなければログイン画面へリダイレクトする
	r.Get("/onboarding/role", onboardingHandler.Show)
	r.With(middleware.NewCSRFMiddleware(csrfConfig)).Post("/onboarding/role", onboardingHandler.Submit)
	r.Get("/dashboard", dashboardHandler.Page)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.With(deps.RateLimiter.ProfileWriteMiddleware()).Post("/api/onboarding/profile", onboardingHandler.SaveProfile)
		r.With(deps.RateLimiter.ProfileWriteMiddleware()).Patch("/api/profile/name", dashboardHandler.Rename)

		r.Route("/api/dashboard", func(r chi.Router) {
			r.Get("/", dashboardHandler.Get)
			r.Post("/mic-sessions", dashboardHandler.IncrementMicSessions)
			r.Get("/events", dashboardHandler.Events)
		})
	})

	return r
}
