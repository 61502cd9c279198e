package pantherpay

import (
	"net/http"
	"strings"
	"time"

	tee "github.com/pantherpay/pantherpay/pkg/response-tee"
)

// accessLog records method, path, status and latency for every request.
// Pure observability: it never blocks or mutates the exchange.
func (g *Gateway) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		saver := tee.NewResponseSaver(w)
		next.ServeHTTP(saver, r)
		g.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("sourceIp", getRequestSourceIp(r)).
			Int("status", saver.StatusCode()).
			Int("bytes", saver.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	// if not found, return
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}
