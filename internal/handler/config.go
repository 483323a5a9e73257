package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketwatch/internal/models"
	"marketwatch/internal/tenant"
)

// getTenantConfig serves GET /api/config/{tenant}.
//
// @Summary     Get tenant config
// @Tags        config
// @Produce     json
// @Param       tenant path string true "tenant id"
// @Success     200 {object} apiResponse
// @Failure     404 {object} apiResponse
// @Router      /api/config/{tenant} [get]
func (s *Server) getTenantConfig(c *gin.Context) {
	tenantID := c.Param("tenant")
	cfg, err := s.Tenants.Get(tenantID)
	if err != nil {
		writeTenantError(c, err)
		return
	}
	cfg.AdminToken = "" // never echo the secret back
	Ok(c, cfg, nil)
}

// putTenantConfig serves POST /api/config/{tenant}, admin-gated.
//
// @Summary     Put tenant config
// @Tags        config
// @Accept      json
// @Produce     json
// @Param       tenant path string true "tenant id"
// @Param       X-Admin-Key header string true "admin key"
// @Success     200 {object} apiResponse
// @Failure     400 {object} apiResponse
// @Failure     401 {object} apiResponse
// @Router      /api/config/{tenant} [post]
func (s *Server) putTenantConfig(c *gin.Context) {
	tenantID := c.Param("tenant")

	var body models.TenantConfig
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, "invalid json body", nil)
		return
	}

	existing, err := s.Tenants.Get(tenantID)
	if err == nil && body.AdminToken == "" {
		body.AdminToken = existing.AdminToken
	}

	if err := s.Tenants.Put(tenantID, body); err != nil {
		writeTenantError(c, err)
		return
	}
	s.Audit.Record(c.Request.Context(), tenantID, "put_config", body)
	Ok(c, gin.H{"tenant_id": tenantID}, nil)
}

func writeTenantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tenant.ErrInvalidTenantID),
		errors.Is(err, tenant.ErrInvalidChannel),
		errors.Is(err, tenant.ErrInvalidRole),
		errors.Is(err, tenant.ErrInvalidToken),
		errors.Is(err, tenant.ErrInvalidWebhook),
		errors.Is(err, tenant.ErrPathEscape):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, tenant.ErrNotFound):
		Error(c, http.StatusNotFound, "tenant not found", nil)
	default:
		Error(c, http.StatusInternalServerError, "tenant store error", nil)
	}
}
