package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/mmdatafocus/fund_ledger/config"
	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/metrics"
	"github.com/mmdatafocus/fund_ledger/middlewares"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	// Production requires an explicit CORS_ALLOWED_ORIGINS allowlist.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			cfg.AllowOriginFunc = func(string) bool { return false }
		} else {
			cfg.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	cfg.AllowCredentials = !cfg.AllowAllOrigins
	return cfg
}

func newRouter(a *api, m *metrics.LedgerMetrics, limiter *middlewares.RateLimiter) *gin.Engine {
	binding.EnableDecoderUseNumber = true

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.MetricsMiddleware(m))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.Use(cors.New(corsConfig()))
	r.Use(middlewares.AuthMiddleware())
	if limiter != nil {
		r.Use(limiter.RateLimitMiddleware)
	}
	r.Use(customErrorLogger(a.logger))
	r.Use(gin.Recovery())

	a.routes(r)
	r.NoRoute(customNotFoundHandler)
	return r
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// rateLimiterFromEnv returns nil unless RATE_LIMIT_ENABLED=true.
// - RATE_LIMIT_WINDOW_SECONDS=60
// - RATE_LIMIT_MAX_REQUESTS=600
func rateLimiterFromEnv(ctx context.Context) *middlewares.RateLimiter {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		return nil
	}
	if config.GetRedisDB() == nil {
		config.ConnectRedisWithRetry(ctx)
	}
	if config.GetRedisDB() == nil {
		return nil
	}
	limit := int64(600)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	return middlewares.NewRateLimiter(config.GetRedisDB(), limit, durationFromEnv("RATE_LIMIT_WINDOW_SECONDS", time.Minute))
}

// openStore connects the configured backing store. MySQL runs migrations
// unless SKIP_MIGRATIONS=true.
func openStore(logger *logrus.Logger, settings config.LedgerSettings) (ledger.Store, *gorm.DB, error) {
	if settings.Store == config.LedgerStoreMemory {
		logger.WithFields(logrus.Fields{"field": "store"}).Warn("LEDGER_STORE=memory; ledger state is lost on restart")
		return ledger.NewMemoryStore(), nil, nil
	}
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			return nil, nil, err
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}
	return models.NewGormLedgerStore(db), db, nil
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	settings := config.LoadLedgerSettings()
	if settings.Operator == "" {
		logger.WithFields(logrus.Fields{"field": "config"}).Fatal("LEDGER_OPERATOR_ID is required")
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	bgCtx, cancelBackground := context.WithCancel(sigCtx)
	defer cancelBackground()

	m := metrics.New()
	a := newAPI(logger, m)

	// Listen before dependencies are ready; ledger routes answer 503 until then.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(a, m, rateLimiterFromEnv(sigCtx)),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	store, db, err := openStore(logger, settings)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "store"}).Fatal("failed to open ledger store: " + err.Error())
	}
	if db != nil {
		a.db = db
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
	}

	// A shared database needs a single writer across instances.
	var keeper *workflow.LeaseKeeper
	if db != nil {
		if config.GetRedisLock() == nil {
			config.ConnectRedisWithRetry(sigCtx)
		}
		keeper = workflow.NewLeaseKeeper(config.GetRedisLock(), settings.WriterLeaseTTL, logger)
		if err := keeper.Acquire(sigCtx); err != nil {
			logger.WithFields(logrus.Fields{"field": "writer_lease"}).Fatal("failed to acquire writer lease: " + err.Error())
		}
		if gs, ok := store.(*models.GormLedgerStore); ok {
			if err := keeper.FenceStore(sigCtx, gs); err != nil {
				logger.WithFields(logrus.Fields{"field": "writer_lease"}).Fatal("failed to claim writer fence: " + err.Error())
			}
		}
		go keeper.Keep(bgCtx, func(err error) {
			config.LogError(logger, "server.go", "main", "writer lease lost; mutations are refused", nil, err)
		})
		a.lease = keeper
	}

	l, err := ledger.Open(sigCtx, store, ledger.Options{
		Operator:    settings.Operator,
		ChainKey:    settings.ChainKey,
		PhoneRegion: settings.PhoneRegion,
		Logger:      logger,
		Notifiers:   []ledger.Notifier{ledger.LogNotifier{Logger: logger}, m},
	})
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "ledger"}).Fatal("failed to open ledger: " + err.Error())
	}
	m.RegisterLedgerGauges(l)
	a.ledger.Store(l)

	if db != nil && settings.NotificationTopic != "" {
		go workflow.NewOutboxDispatcher(db, logger, settings.NotificationTopic).Run(bgCtx)
	}
	go workflow.RunReconciliationWorkflow(bgCtx, l, db, logger, durationFromEnv("LEDGER_RECONCILE_SECONDS", 5*time.Minute))

	logger.WithFields(logrus.Fields{
		"info":     "Ledger Opened",
		"store":    settings.Store,
		"operator": settings.Operator,
	}).Info("serving on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if keeper != nil {
		if err := keeper.Release(shutdownCtx); err != nil {
			config.LogError(logger, "server.go", "main", "release writer lease", nil, err)
		}
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
