package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/pkg/errcode"
	"github.com/xxxsen/shoruichecker/internal/pkg/response"
)

// LocalOnly rejects requests whose peer is not a loopback address. The API can
// read and rewrite arbitrary files, so it must not be reachable from the network
// even when bound to a wildcard address.
func LocalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			logutil.GetLogger(c.Request.Context()).Warn("non local request rejected", zap.String("remote", c.Request.RemoteAddr))
			response.Error(c, errcode.ErrForbidden, http.StatusText(http.StatusForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}
