package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketwatch/internal/audit"
	"marketwatch/internal/catalog"
	"marketwatch/internal/config"
	"marketwatch/internal/health"
	"marketwatch/internal/models"
	"marketwatch/internal/ratelimit"
	"marketwatch/internal/store"
	"marketwatch/internal/tenant"
	"marketwatch/internal/views"
	"marketwatch/internal/watchlist"
)

// Backfiller is satisfied by the scheduler; exposed so the admin
// fetch_recent route can trigger an out-of-band backfill.
type Backfiller interface {
	FetchRecent(ctx context.Context, hours int) (int, error)
}

// Pruner is satisfied by the scheduler's store.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
	Counts(ctx context.Context) (store.Counts, error)
}

// Server wires every Read API route (component I) to its backing
// components. Grounded on the teacher's HealthHandler/Register pattern,
// generalized to one Server holding every dependency instead of one
// handler struct per route family.
type Server struct {
	Views     *views.Views
	Store     *store.Store
	Catalog   *catalog.Cache
	Tenants   *tenant.Store
	Watchlist *watchlist.Store
	Health    *health.Tracker
	Logger    *zap.Logger
	Cfg       config.Config

	RateLimiter *ratelimit.PerIP
	Retention   time.Duration
	Backfiller  Backfiller
	Audit       *audit.Recorder
}

// Register mounts every route from spec.md §4.I onto r.
func (s *Server) Register(r *gin.Engine) {
	rl := RateLimitMiddleware(s.RateLimiter)

	api := r.Group("/api", rl)
	api.GET("/top", s.getTop)
	api.GET("/dumps", s.getDumps)
	api.GET("/dumps/:item_id", s.getDumpDetail)
	api.GET("/spikes", s.getSpikes)
	api.GET("/all_items", s.getAllItems)
	api.GET("/tiers", s.getTiers)
	api.GET("/health", s.getHealth)
	api.GET("/watchlist/:tenant", s.getWatchlist)

	api.GET("/config/:tenant", s.getTenantConfig)
	api.POST("/config/:tenant",
		AdminMiddleware(s.Cfg.Security.AdminKey, s.Cfg.Security.AllowPublicAdmin),
		BodyLimitMiddleware(s.Cfg.Security.MaxBodyBytes),
		s.putTenantConfig)

	admin := api.Group("/admin", AdminMiddleware(s.Cfg.Security.AdminKey, s.Cfg.Security.AllowPublicAdmin))
	admin.POST("/cache/fetch_recent", BodyLimitMiddleware(s.Cfg.Security.MaxBodyBytes), s.postFetchRecent)
	admin.POST("/db_prune", s.postDBPrune)
	admin.GET("/db_health", s.getDBHealth)
}

func tierSettingsFor(tenants *tenant.Store, guildID string) (enabledTiers []string, minTier string) {
	if tenants == nil || guildID == "" {
		return nil, ""
	}
	cfg, err := tenants.Get(guildID)
	if err != nil {
		return nil, ""
	}
	return cfg.AlertThresholds.EnabledTiers, cfg.MinTierName
}

func filterDumpsForTenant(dumps []models.DumpEvent, enabledTiers []string, minTier string) []models.DumpEvent {
	if len(enabledTiers) == 0 && minTier == "" {
		return dumps
	}
	allowed := make(map[string]bool, len(enabledTiers))
	for _, t := range enabledTiers {
		allowed[t] = true
	}
	minOrder := -1
	if minTier != "" {
		minOrder = models.TierOrder(minTier)
	}
	out := make([]models.DumpEvent, 0, len(dumps))
	for _, d := range dumps {
		if len(allowed) > 0 && !allowed[d.Tier] {
			continue
		}
		if minOrder >= 0 && models.TierOrder(d.Tier) < minOrder {
			continue
		}
		out = append(out, d)
	}
	return out
}
