package netutil

import (
	"fmt"
	"net"
)

// ParseCIDRs parses CIDR strings into []*net.IPNet, failing on the first invalid entry.
func ParseCIDRs(cidrs []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, s := range cidrs {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("admin allowlist: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}
