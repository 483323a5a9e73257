package handler

import (
	"crypto/subtle"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketwatch/internal/ratelimit"
)

// RateLimitMiddleware rejects requests once a client IP exceeds its quota,
// per §4.I's "every endpoint is rate-limited by client IP" requirement.
func RateLimitMiddleware(limiter *ratelimit.PerIP) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c)
		if !limiter.Allow(ip) {
			Error(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		return "unknown"
	}
	return ip
}

// AdminMiddleware enforces §4.I's admin gate: constant-time X-Admin-Key
// equality plus a private-network-only source address, unless the operator
// has explicitly allowed public admin access.
func AdminMiddleware(adminKey string, allowPublic bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			Error(c, http.StatusForbidden, "admin access not configured", nil)
			c.Abort()
			return
		}
		supplied := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(adminKey)) != 1 {
			Error(c, http.StatusUnauthorized, "invalid admin key", nil)
			c.Abort()
			return
		}
		if !allowPublic && !isPrivateAddr(clientIP(c)) {
			Error(c, http.StatusForbidden, "admin access restricted to private networks", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func isPrivateAddr(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}

// BodyLimitMiddleware enforces §4.I's write-body limits: reject bodies
// larger than maxBytes and non-application/json content types.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		ct := c.GetHeader("Content-Type")
		if ct != "application/json" && ct != "application/json; charset=utf-8" {
			Error(c, http.StatusUnsupportedMediaType, "expected application/json", nil)
			c.Abort()
			return
		}
		if c.Request.ContentLength > maxBytes {
			Error(c, http.StatusRequestEntityTooLarge, "request body too large", nil)
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
