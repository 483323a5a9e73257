package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getWatchlist serves GET /api/watchlist/{tenant} — the supplemented
// watchlist feature (§3's Watchlist entry, never wired to an operation in
// the distilled spec). ?user_id= narrows to one user.
//
// @Summary     List watched items
// @Tags        watchlist
// @Produce     json
// @Param       tenant path string true "tenant id"
// @Param       user_id query string false "scope to one user"
// @Success     200 {object} apiResponse
// @Router      /api/watchlist/{tenant} [get]
func (s *Server) getWatchlist(c *gin.Context) {
	tenantID := c.Param("tenant")
	userID := c.Query("user_id")
	rows, err := s.Watchlist.List(c.Request.Context(), tenantID, userID)
	if err != nil {
		Error(c, http.StatusInternalServerError, "watchlist store error", nil)
		return
	}
	Ok(c, rows, nil)
}
