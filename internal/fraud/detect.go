package fraud

import (
	"context"
	"net"
	"strings"
)

// Ranges with heavy anonymizer presence, checked when the provider verdict
// carries no flags.
var anonymizerCIDRs = []string{
	"103.21.244.0/22",
	"104.16.0.0/12",
	"162.158.0.0/15",
	"172.64.0.0/13",
	"173.245.48.0/20",
}

var anonymizerRanges = func() []*net.IPNet {
	ranges := make([]*net.IPNet, 0, len(anonymizerCIDRs))
	for _, cidr := range anonymizerCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("fraud: bad anonymizer cidr " + cidr)
		}
		ranges = append(ranges, network)
	}
	return ranges
}()

var anonymizerHostKeywords = []string{"vpn", "proxy", "tor"}

// DetectVPN reports whether the click should count as anonymized traffic.
// Any live provider flag settles it; otherwise the IP is checked against the
// known anonymizer ranges and its reverse DNS names.
func (s *Scorer) DetectVPN(ctx context.Context, ip string, signals Signals) bool {
	if signals.OK && (signals.VPN || signals.Proxy || signals.Tor) {
		return true
	}

	if parsed := net.ParseIP(ip); parsed != nil {
		for _, network := range anonymizerRanges {
			if network.Contains(parsed) {
				return true
			}
		}
	}

	for _, name := range s.rdns(ctx, ip) {
		lowered := strings.ToLower(name)
		for _, keyword := range anonymizerHostKeywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}
