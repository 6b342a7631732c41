package fraud

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/afftrack/clickpipe/internal/config"
)

// Country groups with fixed additive weights, checked by exact code.
var highRiskCountries = map[string]struct{}{
	"RU": {}, "CN": {}, "KP": {}, "IR": {}, "VE": {},
	"NG": {}, "UA": {}, "RO": {}, "BG": {}, "ID": {},
}

var mediumRiskCountries = map[string]struct{}{
	"IN": {}, "PK": {}, "BR": {}, "TR": {}, "VN": {},
	"PH": {}, "EG": {}, "MA": {}, "TH": {},
}

// Placeholder codes some geo sources emit when they cannot attribute a
// country. The weighted scorer treats them as a risk signal of their own.
var placeholderCountries = map[string]struct{}{
	"XX": {}, "N/A": {}, "T1": {}, "O1": {}, "A1": {}, "A2": {},
}

var dataCenterCIDRs = []string{
	"35.190.0.0/16",
	"52.0.0.0/8",
	"104.196.0.0/14",
	"34.64.0.0/10",
	"157.240.0.0/16",
	"199.16.156.0/22",
	"192.30.252.0/22",
}

var dataCenterRanges = func() []*net.IPNet {
	ranges := make([]*net.IPNet, 0, len(dataCenterCIDRs))
	for _, cidr := range dataCenterCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("fraud: bad data center cidr " + cidr)
		}
		ranges = append(ranges, network)
	}
	return ranges
}()

var suspiciousHostKeywords = []string{
	"bot", "crawl", "spider", "scan", "proxy", "host", "server",
}

// ReverseLookup resolves an IP to its PTR names. Injectable so tests and the
// scorer stay off the real resolver.
type ReverseLookup func(ctx context.Context, ip string) []string

func systemReverseLookup(ctx context.Context, ip string) []string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil {
		return nil
	}
	return names
}

// Scorer folds reputation signals and geo context into a 0-100 score. The
// mode picks between the provider-led formula and the weighted one.
type Scorer struct {
	mode string
	rdns ReverseLookup
}

func NewScorer(cfg config.Config) *Scorer {
	return &Scorer{mode: cfg.RiskScorer, rdns: systemReverseLookup}
}

// NewScorerWithLookup overrides the reverse DNS dependency.
func NewScorerWithLookup(mode string, rdns ReverseLookup) *Scorer {
	if rdns == nil {
		rdns = systemReverseLookup
	}
	return &Scorer{mode: mode, rdns: rdns}
}

// Score returns the risk score for one click.
func (s *Scorer) Score(ctx context.Context, ip, countryCode string, signals Signals) int {
	if s.mode == config.RiskScorerWeighted {
		return s.scoreWeighted(countryCode, signals)
	}
	return s.scoreWithProvider(ctx, ip, countryCode, signals)
}

// scoreWithProvider trusts a live provider verdict outright; its risk figure
// already aggregates the same dimensions, and an affirmative zero is still a
// verdict. The additive branch only runs when the provider gave no figure.
func (s *Scorer) scoreWithProvider(ctx context.Context, ip, countryCode string, signals Signals) int {
	if signals.OK && signals.HasRisk {
		return clampScore(signals.Risk)
	}

	score := 0
	if signals.VPN || signals.Tor || signals.Proxy {
		score += 50
	}
	if _, ok := highRiskCountries[countryCode]; ok {
		score += 30
	} else if _, ok := mediumRiskCountries[countryCode]; ok {
		score += 15
	}
	if inDataCenterRange(ip) {
		score += 25
	}
	if hasSuspiciousHostname(s.rdns(ctx, ip)) {
		score += 15
	}
	return clampScore(score)
}

func (s *Scorer) scoreWeighted(countryCode string, signals Signals) int {
	score := signals.Risk * 10
	if signals.VPN {
		score += 20
	}
	if signals.Proxy {
		score += 15
	}
	if signals.Tor {
		score += 30
	}
	if _, ok := placeholderCountries[strings.ToUpper(countryCode)]; ok {
		score += 25
	}
	return clampScore(score)
}

func inDataCenterRange(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range dataCenterRanges {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func hasSuspiciousHostname(names []string) bool {
	for _, name := range names {
		lowered := strings.ToLower(name)
		for _, keyword := range suspiciousHostKeywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}

func clampScore(score int) int {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
