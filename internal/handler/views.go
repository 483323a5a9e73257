package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketwatch/internal/models"
)

// itemWithSnapshot is the joined record /api/all_items returns when
// time_window is supplied: catalog metadata plus the item's most recent
// snapshot within that window.
type itemWithSnapshot struct {
	models.ItemMeta
	LatestSnapshot *models.Snapshot `json:"latest_snapshot,omitempty"`
}

// getTop serves GET /api/top — the current top_flips view, per §4.I.
//
// @Summary     Current flip opportunities
// @Tags        views
// @Produce     json
// @Success     200 {object} apiResponse
// @Router      /api/top [get]
func (s *Server) getTop(c *gin.Context) {
	snap := s.Views.Current()
	Ok(c, snap.TopFlips, map[string]any{
		"generation": snap.Generation,
		"built_at":   snap.BuiltAt,
	})
}

// getDumps serves GET /api/dumps?tier=&group=&special=&limit=&guild_id=.
// Filters combine with AND; unknown values are a 400 per §4.I.
//
// @Summary     Current dump events
// @Tags        views
// @Produce     json
// @Param       tier query string false "tier name filter"
// @Param       group query string false "metals|gems"
// @Param       special query string false "slow_buy|one_gp_dump|super"
// @Param       limit query int false "max rows"
// @Param       guild_id query string false "apply this tenant's tier filters"
// @Success     200 {object} apiResponse
// @Failure     400 {object} apiResponse
// @Router      /api/dumps [get]
func (s *Server) getDumps(c *gin.Context) {
	snap := s.Views.Current()
	dumps := snap.Dumps

	if tier := c.Query("tier"); tier != "" {
		if _, ok := models.TierByName(tier); !ok {
			Error(c, http.StatusBadRequest, "unknown tier", nil)
			return
		}
		filtered := make([]models.DumpEvent, 0, len(dumps))
		for _, d := range dumps {
			if d.Tier == tier {
				filtered = append(filtered, d)
			}
		}
		dumps = filtered
	}

	if group := c.Query("group"); group != "" {
		if group != string(models.TierGroupMetals) && group != string(models.TierGroupGems) {
			Error(c, http.StatusBadRequest, "unknown group", nil)
			return
		}
		filtered := make([]models.DumpEvent, 0, len(dumps))
		for _, d := range dumps {
			t, ok := models.TierByName(d.Tier)
			if ok && string(t.Group) == group {
				filtered = append(filtered, d)
			}
		}
		dumps = filtered
	}

	if special := c.Query("special"); special != "" {
		flag := models.DumpFlag(special)
		switch flag {
		case models.FlagSlowBuy, models.FlagOneGPDump, models.FlagSuper:
		default:
			Error(c, http.StatusBadRequest, "unknown special flag", nil)
			return
		}
		filtered := make([]models.DumpEvent, 0, len(dumps))
		for _, d := range dumps {
			if d.HasFlag(flag) {
				filtered = append(filtered, d)
			}
		}
		dumps = filtered
	}

	if guildID := c.Query("guild_id"); guildID != "" {
		enabledTiers, minTier := tierSettingsFor(s.Tenants, guildID)
		dumps = filterDumpsForTenant(dumps, enabledTiers, minTier)
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		if limit < len(dumps) {
			dumps = dumps[:limit]
		}
	}

	Ok(c, dumps, map[string]any{"generation": snap.Generation, "built_at": snap.BuiltAt})
}

// getDumpDetail serves GET /api/dumps/{item_id} — the current dump event
// for that item (if any) plus its last 24h of snapshots.
//
// @Summary     Dump detail
// @Tags        views
// @Produce     json
// @Param       item_id path int true "item id"
// @Success     200 {object} apiResponse
// @Failure     400 {object} apiResponse
// @Router      /api/dumps/{item_id} [get]
func (s *Server) getDumpDetail(c *gin.Context) {
	itemID, err := parseItemIDParam(c.Param("item_id"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid item_id", nil)
		return
	}

	snap := s.Views.Current()
	var found *models.DumpEvent
	for i := range snap.Dumps {
		if snap.Dumps[i].ItemID == itemID {
			found = &snap.Dumps[i]
			break
		}
	}

	history, err := s.Store.Last24h(c.Request.Context(), itemID, snap.BuiltAt)
	if err != nil {
		Error(c, http.StatusInternalServerError, "history lookup failed", nil)
		return
	}

	Ok(c, gin.H{"event": found, "history": history}, nil)
}

// getSpikes serves GET /api/spikes.
//
// @Summary     Current spike events
// @Tags        views
// @Produce     json
// @Success     200 {object} apiResponse
// @Router      /api/spikes [get]
func (s *Server) getSpikes(c *gin.Context) {
	snap := s.Views.Current()
	Ok(c, snap.Spikes, map[string]any{"generation": snap.Generation, "built_at": snap.BuiltAt})
}

// getAllItems serves GET /api/all_items?time_window=.
//
// @Summary     Snapshot-joined item set
// @Tags        views
// @Produce     json
// @Param       time_window query string false "e.g. 24h"
// @Success     200 {object} apiResponse
// @Failure     400 {object} apiResponse
// @Router      /api/all_items [get]
func (s *Server) getAllItems(c *gin.Context) {
	snap := s.Views.Current()
	window := strings.TrimSpace(c.Query("time_window"))
	if window == "" {
		Ok(c, snap.AllItems, map[string]any{"generation": snap.Generation, "built_at": snap.BuiltAt})
		return
	}

	hours, err := parseTimeWindow(window)
	if err != nil || hours <= 0 {
		Error(c, http.StatusBadRequest, "invalid time_window", nil)
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	latest, err := s.Store.LatestSince(c.Request.Context(), since)
	if err != nil {
		Error(c, http.StatusInternalServerError, "snapshot lookup failed", nil)
		return
	}
	byItem := make(map[models.ItemID]models.Snapshot, len(latest))
	for _, sn := range latest {
		byItem[sn.ItemID] = sn
	}

	joined := make([]itemWithSnapshot, 0, len(snap.AllItems))
	for _, meta := range snap.AllItems {
		sn, ok := byItem[meta.ID]
		if !ok {
			continue
		}
		row := sn
		joined = append(joined, itemWithSnapshot{ItemMeta: meta, LatestSnapshot: &row})
	}

	Ok(c, joined, map[string]any{"generation": snap.Generation, "built_at": snap.BuiltAt})
}

func parseTimeWindow(s string) (int, error) {
	s = strings.TrimSuffix(s, "h")
	return strconv.Atoi(s)
}

// getTiers serves GET /api/tiers?guild_id= — the tier catalog plus that
// tenant's tier settings, when guild_id is supplied.
//
// @Summary     Tier catalog
// @Tags        views
// @Produce     json
// @Param       guild_id query string false "tenant id"
// @Success     200 {object} apiResponse
// @Router      /api/tiers [get]
func (s *Server) getTiers(c *gin.Context) {
	resp := gin.H{"tiers": models.Tiers}
	if guildID := c.Query("guild_id"); guildID != "" {
		cfg, err := s.Tenants.Get(guildID)
		if err == nil {
			resp["tier_roles"] = cfg.TierRoles
			resp["min_tier_name"] = cfg.MinTierName
		}
	}
	Ok(c, resp, nil)
}

func parseItemIDParam(raw string) (models.ItemID, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, strconv.ErrSyntax
	}
	return models.ItemID(n), nil
}
