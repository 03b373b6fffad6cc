package middleware

import (
	"net"
	"net/http"
)

// AdminGate restricts access to admin endpoints by remote IP against allowed CIDR list.
// An empty list denies everyone.
func AdminGate(allowed []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if ip := net.ParseIP(host); ip != nil {
				for _, n := range allowed {
					if n.Contains(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}
