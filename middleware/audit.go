package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const clientIPKey = "client_ip"

// AuditMiddleware resolves the caller's address once so handlers can attach
// it to audit entries and throttle keys.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIPKey, getClientIP(c))
		c.Next()
	}
}

// Proxy headers in the order they are trusted. The site runs behind
// Cloudflare and a platform load balancer.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Real-Ip", "X-Forwarded-For"}

func getClientIP(c *gin.Context) string {
	for _, h := range proxyHeaders {
		v := c.GetHeader(h)
		if v == "" {
			continue
		}
		// X-Forwarded-For may list a chain, the client is first
		first, _, _ := strings.Cut(v, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

// GetIPFromContext retrieves IP address from gin context
func GetIPFromContext(c *gin.Context) string {
	if ip, ok := c.Get(clientIPKey); ok {
		if s, ok := ip.(string); ok {
			return s
		}
	}
	return getClientIP(c)
}
