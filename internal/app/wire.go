package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/foodshare/internal/auth"
	"github.com/hitoshi/foodshare/internal/config"
	"github.com/hitoshi/foodshare/internal/database"
	"github.com/hitoshi/foodshare/internal/food"
	"github.com/hitoshi/foodshare/internal/handler"
	"github.com/hitoshi/foodshare/internal/metrics"
	"github.com/hitoshi/foodshare/internal/middleware"
	"github.com/hitoshi/foodshare/internal/request"
	"github.com/hitoshi/foodshare/internal/security"
	"github.com/hitoshi/foodshare/internal/store"
	"github.com/hitoshi/foodshare/internal/worker/normalize"
)

// Application はHTTPサーバーとLambdaの両方で共有する組み立て済みの依存関係。
// ストアへの接続はConnectで遅延して行う。接続前のAPIリクエストは503になる。
type Application struct {
	Config      *config.Config
	Store       *store.Client
	Registry    *prometheus.Registry
	Metrics     *metrics.Collector
	RateLimiter *middleware.RateLimiter
	Handler     http.Handler

	// AutoMigrate がtrueの場合、postgresへの初回接続前にマイグレーションを適用する。
	AutoMigrate bool

	logger *slog.Logger

	connectMu  sync.Mutex
	migrated   bool
	normalized bool

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// Build は設定から全依存関係を組み立てる。ストアにはまだ接続しない。
func Build(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	authService, err := auth.NewService(auth.ServiceConfig{
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	client := store.New(store.Config{
		Driver:        cfg.StoreDriver,
		DatabaseURL:   cfg.DatabaseURL,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		Pool:          database.PoolConfig{MaxOpenConns: cfg.DBMaxOpenConns},
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	foodService := food.NewService(
		client.FoodRepository(),
		security.NewTextSanitizer(),
		food.WithMetrics(collector),
		food.WithFeaturedLimit(cfg.FeaturedLimit),
		food.WithLogger(logger),
	)
	requestService := request.NewService(client.RequestRepository(), request.WithLogger(logger))

	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitCreate),
	)

	sameSite := cookieSameSite(cfg)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		Store:             client,
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure:   cfg.CookieSecure,
			CookieDomain:   cfg.CookieDomain,
			CookieSameSite: sameSite,
		},
		RateLimiter: rateLimiter,

		Metrics:  collector,
		Gatherer: registry,

		TokenIssuer: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:   cfg.CookieDomain,
			CookieSecure:   cfg.CookieSecure,
			CookieSameSite: sameSite,
		},

		FoodService:    foodService,
		RequestService: requestService,
	})

	bgCtx, bgCancel := context.WithCancel(context.Background())

	return &Application{
		Config:      cfg,
		Store:       client,
		Registry:    registry,
		Metrics:     collector,
		RateLimiter: rateLimiter,
		Handler:     router,
		logger:      logger,
		bgCtx:       bgCtx,
		bgCancel:    bgCancel,
	}, nil
}

// cookieSameSite はCookieのSameSite属性を決める。
// HTTPSで配信する場合はフロントエンドが別オリジンでも送信されるようNoneにする。
func cookieSameSite(cfg *config.Config) http.SameSite {
	if cfg.CookieSecure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// Connect はストアへ接続する。すでに接続済みの場合は何もしない。
// 初回接続に成功し、NormalizeOnStartが有効な場合は旧形式の賞味期限の変換をバックグラウンドで開始する。
func (a *Application) Connect(ctx context.Context) error {
	a.connectMu.Lock()
	defer a.connectMu.Unlock()

	if a.Store.Ready() {
		return nil
	}

	if a.AutoMigrate && !a.migrated && a.Config.StoreDriver == config.DriverPostgres {
		version, err := database.RunMigrations(a.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		a.migrated = true
		a.logger.Info("database migrations applied", slog.Uint64("schema_version", uint64(version.Version)))
	}

	if err := a.Store.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect store: %w", err)
	}
	a.logger.Info("store connection established", slog.String("driver", a.Store.Driver()))

	if a.Config.NormalizeOnStart && !a.normalized {
		a.normalized = true
		a.bgWG.Add(1)
		go func() {
			defer a.bgWG.Done()
			if _, err := a.Normalize(a.bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("legacy expireAt normalization failed", slog.String("error", err.Error()))
			}
		}()
	}

	return nil
}

// ConnectWithRetry は接続に成功するかctxがキャンセルされるまでConnectを繰り返す。
// 再試行の間隔はintervalから指数的に延びる。
func (a *Application) ConnectWithRetry(ctx context.Context, interval time.Duration) error {
	for failures := 0; ; failures++ {
		err := a.Connect(ctx)
		if err == nil {
			return nil
		}
		delay := connectBackoff(interval, failures)
		a.logger.Warn("store connection failed, retrying",
			slog.String("error", err.Error()),
			slog.Int("consecutive_failures", failures+1),
			slog.Duration("retry_in", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Normalize は旧形式の賞味期限を一括でタイムスタンプに変換する。
func (a *Application) Normalize(ctx context.Context) (normalize.Result, error) {
	job := normalize.NewJob(a.Store.FoodRepository(), a.logger, a.Metrics)
	return job.Run(ctx)
}

// Close はバックグラウンド処理を停止し、レートリミッターとストア接続を解放する。
func (a *Application) Close(ctx context.Context) error {
	a.bgCancel()
	a.bgWG.Wait()
	a.RateLimiter.Stop()
	return a.Store.Close(ctx)
}
