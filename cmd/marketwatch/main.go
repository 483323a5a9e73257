// Command marketwatch is the process entrypoint: it wires ingestion,
// detection, tenant alert routing, and the Read API into a single binary
// per spec.md §4.J/§6, in the shape of the teacher's cmd/monitor/main.go.
//
// @title        Market Event Detector API
// @version      1.0
// @description  Ingestion, dump/spike/flip detection, and tenant alert routing for a public item-price feed.
// @BasePath     /
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"marketwatch/internal/audit"
	"marketwatch/internal/catalog"
	"marketwatch/internal/config"
	cronrunner "marketwatch/internal/cron"
	"marketwatch/internal/db"
	"marketwatch/internal/egress"
	"marketwatch/internal/event"
	"marketwatch/internal/handler"
	"marketwatch/internal/health"
	"marketwatch/internal/logger"
	"marketwatch/internal/ratelimit"
	"marketwatch/internal/retry"
	"marketwatch/internal/router"
	"marketwatch/internal/scheduler"
	"marketwatch/internal/store"
	"marketwatch/internal/tenant"
	"marketwatch/internal/upstream"
	"marketwatch/internal/views"
	"marketwatch/internal/watchlist"

	_ "marketwatch/docs"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	envOnly := false
	if raw := os.Getenv("MED_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		os.Stderr.WriteString("config load failed: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Error("db open failed", zap.Error(err))
		os.Exit(3)
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set db timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Error("auto-migrate failed", zap.Error(err))
		os.Exit(3)
	}
	if err := db.SeedTiers(dbConn); err != nil {
		log.Warn("tier seed failed", zap.Error(err))
	}

	ingestPolicy := retry.Policy{
		Base:        cfg.Upstream.RetryBaseDelay,
		Max:         cfg.Upstream.RetryMaxDelay,
		MaxAttempts: cfg.Upstream.RetryMaxAttempts,
	}
	httpUp := &http.Client{Timeout: cfg.Upstream.Timeout}
	upClient := upstream.New(httpUp, cfg.Upstream.BaseURL, cfg.Upstream.FallbackBaseURL,
		cfg.Upstream.UserAgent, cfg.Ingest.Period, cfg.Ingest.WindowedPeriod, ingestPolicy)

	itemCatalog := catalog.New(upClient, cfg.Catalog.CachePath, log)
	itemCatalog.LoadFromDisk()

	priceStore := store.New(dbConn.Gorm, log, cfg.Ingest.BatchSize)
	auditRecorder := audit.New(dbConn.Gorm, log)
	watchlistStore := watchlist.New(dbConn.Gorm)
	tenantStore := tenant.New(cfg.Tenant.ConfigRoot, cfg.Tenant.CreateIfMissing, cfg.Tenant.AllowedWebhookHosts)
	if err := tenantStore.SeedFromFile(cfg.Tenant.SeedFile, log); err != nil {
		log.Warn("tenant: bootstrap seed file failed to load", zap.Error(err))
	}
	viewSet := views.New()
	healthTracker := health.NewTracker()

	egressPolicy := retry.Policy{
		Base:        cfg.Egress.RetryBaseDelay,
		Max:         cfg.Egress.RetryMaxDelay,
		MaxAttempts: cfg.Egress.RetryMaxAttempts,
	}
	httpEgress := &http.Client{Timeout: cfg.Egress.Timeout}
	chatEgress := egress.NewDiscordEgress(httpEgress, webhookResolver(tenantStore), egressPolicy)

	deliveryTracker := router.NewDeliveryTracker()
	alertRouter := router.New(tenantStore, deliveryTracker, chatEgress, log, cfg.Ingest.Period)

	perIPLimiter := ratelimit.New(cfg.Security.RatePerSecond, cfg.Security.RateBurst, 10_000, 10*time.Minute)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(log, ctx)

	sched := scheduler.New(upClient, priceStore, itemCatalog, viewSet, alertRouter, healthTracker, log,
		scheduler.Config{
			IngestPeriod:   cfg.Ingest.Period,
			CatalogPeriod:  cfg.Catalog.Period,
			PrunePeriod:    cfg.Retention.PrunePeriod,
			Retention:      time.Duration(cfg.Retention.Days) * 24 * time.Hour,
			Thresholds:     event.ThresholdsFromConfig(cfg.Detector),
			MaxBackoff:     cfg.Ingest.MaxBackoff,
			ErrorBackoffAt: cfg.Ingest.ErrorBackoffAt,
		}, cronRunner)
	sched.AddSweeper(deliveryTracker.Sweep)
	sched.AddSweeper(perIPLimiter.Sweep)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware(cfg.Security.CORSOrigins))

	probes := &handler.ProbeHandler{Ping: func() error { return db.Ping(dbConn) }}
	probes.Register(engine)

	apiServer := &handler.Server{
		Views:       viewSet,
		Store:       priceStore,
		Catalog:     itemCatalog,
		Tenants:     tenantStore,
		Watchlist:   watchlistStore,
		Health:      healthTracker,
		Logger:      log,
		Cfg:         cfg,
		RateLimiter: perIPLimiter,
		Retention:   time.Duration(cfg.Retention.Days) * 24 * time.Hour,
		Backfiller:  sched,
		Audit:       auditRecorder,
	}
	apiServer.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if err := sched.Start(ctx); err != nil {
		log.Error("scheduler start failed", zap.Error(err))
		os.Exit(3)
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// webhookResolver bridges the router's channelID (a tenant-scoped chat
// channel identifier) to the webhook URL chat egress posts through,
// matching TenantConfig.channels values against each tenant's stored
// webhook_url field.
func webhookResolver(tenants *tenant.Store) func(channelID string) (string, bool) {
	return func(channelID string) (string, bool) {
		tenantsList, err := tenants.List()
		if err != nil {
			return "", false
		}
		for _, t := range tenantsList {
			for _, id := range t.Channels {
				if id == channelID {
					return t.WebhookURL, t.WebhookURL != ""
				}
			}
		}
		return "", false
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origin, allowedOrigins) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,X-Admin-Key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
