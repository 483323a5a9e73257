package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getHealth serves GET /api/health: liveness/readiness, upstream status,
// and store cardinalities, per §4.I.
//
// @Summary     Service health
// @Tags        ops
// @Produce     json
// @Success     200 {object} apiResponse
// @Router      /api/health [get]
func (s *Server) getHealth(c *gin.Context) {
	st := s.Health.Get()
	counts, err := s.Store.Counts(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	Ok(c, gin.H{
		"status": "ok",
		"ingest": gin.H{
			"last_ok":            st.LastIngestOK,
			"last_at":            st.LastIngestAt,
			"last_error":         st.LastIngestErr,
			"consecutive_errors": st.ConsecutiveErrors,
		},
		"catalog": gin.H{
			"last_ok": st.LastCatalogOK,
			"last_at": st.LastCatalogAt,
			"items":   s.Catalog.Len(),
		},
		"store": counts,
	}, nil)
}

// ProbeHandler serves the plain container liveness/readiness probes that
// don't need the full API envelope, mirroring the teacher's HealthHandler.
type ProbeHandler struct {
	Ping func() error
}

func (h *ProbeHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *ProbeHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ProbeHandler) ready(c *gin.Context) {
	if h.Ping == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	if err := h.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
