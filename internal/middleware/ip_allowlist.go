// internal/middleware/ip_allowlist.go
package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GatewayIPAllowlist restricts webhook endpoints to the payment gateway's
// published source addresses. In non-production environments an unknown
// source is logged and allowed through so local testing works.
func GatewayIPAllowlist(allowed []string, production bool, logger *zap.Logger) gin.HandlerFunc {
	nets := make([]*net.IPNet, 0, len(allowed))
	ips := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if _, cidr, err := net.ParseCIDR(a); err == nil {
			nets = append(nets, cidr)
			continue
		}
		ips[a] = struct{}{}
	}

	permitted := func(ip string) bool {
		if len(ips) == 0 && len(nets) == 0 {
			return true
		}
		if _, ok := ips[ip]; ok {
			return true
		}
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return false
		}
		for _, cidr := range nets {
			if cidr.Contains(parsed) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if permitted(ip) {
			c.Next()
			return
		}
		if !production {
			logger.Warn("webhook from unlisted source allowed in non-production",
				zap.String("client_ip", ip))
			c.Next()
			return
		}
		logger.Warn("webhook rejected, source not allowlisted",
			zap.String("client_ip", ip))
		c.String(http.StatusForbidden, "0|FAIL")
		c.Abort()
	}
}
