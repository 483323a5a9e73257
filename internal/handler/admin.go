package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type fetchRecentRequest struct {
	Hours int `json:"hours"`
}

// postFetchRecent serves POST /api/admin/cache/fetch_recent — accepts N
// hours (N <= 24) and forces an out-of-band fetch and store of the current
// /1h window via Backfiller.FetchRecent; earlier hours are not retrieved.
//
// @Summary     Force backfill
// @Tags        admin
// @Accept      json
// @Produce     json
// @Param       X-Admin-Key header string true "admin key"
// @Success     200 {object} apiResponse
// @Router      /api/admin/cache/fetch_recent [post]
func (s *Server) postFetchRecent(c *gin.Context) {
	var req fetchRecentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid json body", nil)
		return
	}
	if req.Hours <= 0 || req.Hours > 24 {
		Error(c, http.StatusBadRequest, "hours must be in [1,24]", nil)
		return
	}
	if s.Backfiller == nil {
		Error(c, http.StatusServiceUnavailable, "backfill not available", nil)
		return
	}
	n, err := s.Backfiller.FetchRecent(c.Request.Context(), req.Hours)
	if err != nil {
		Error(c, http.StatusInternalServerError, "backfill failed", nil)
		return
	}
	Ok(c, gin.H{"fetched": n}, nil)
}

// postDBPrune serves POST /api/admin/db_prune.
//
// @Summary     Prune old snapshots
// @Tags        admin
// @Produce     json
// @Param       X-Admin-Key header string true "admin key"
// @Success     200 {object} apiResponse
// @Router      /api/admin/db_prune [post]
func (s *Server) postDBPrune(c *gin.Context) {
	n, err := s.Store.Prune(c.Request.Context(), s.Retention)
	if err != nil {
		Error(c, http.StatusInternalServerError, "prune failed", nil)
		return
	}
	Ok(c, gin.H{"pruned": n}, nil)
}

// getDBHealth serves GET /api/admin/db_health.
//
// @Summary     Store diagnostics
// @Tags        admin
// @Produce     json
// @Param       X-Admin-Key header string true "admin key"
// @Success     200 {object} apiResponse
// @Router      /api/admin/db_health [get]
func (s *Server) getDBHealth(c *gin.Context) {
	counts, err := s.Store.Counts(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, "diagnostics unavailable", nil)
		return
	}
	Ok(c, counts, nil)
}
