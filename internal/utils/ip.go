package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// 反向代理透传真实 IP 的请求头，按优先级排列
var ipHeaders = []string{
	"CF-Connecting-IP", // Cloudflare
	"X-Real-IP",        // Nginx、Caddy
	"X-Forwarded-For",  // 多层代理
}

// GetRealClientIP 获取客户端真实 IP，用于匿名限流
func GetRealClientIP(c *gin.Context) string {
	for _, header := range ipHeaders {
		ipList := c.Request.Header.Get(header)
		if ipList == "" {
			continue
		}
		// X-Forwarded-For 可能包含多个IP，取第一个合法IP
		for _, ip := range strings.Split(ipList, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	ip, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err == nil && net.ParseIP(ip) != nil {
		return ip
	}
	return c.ClientIP()
}
