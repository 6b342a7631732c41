package fraud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/afftrack/clickpipe/internal/config"
)

func noLookup(context.Context, string) []string { return nil }

func namesLookup(names ...string) ReverseLookup {
	return func(context.Context, string) []string { return names }
}

func TestProviderScoreDominatesWhenLive(t *testing.T) {
	scorer := NewScorerWithLookup(config.RiskScorerProvider, noLookup)

	signals := Signals{OK: true, Risk: 66, HasRisk: true, VPN: true}
	assert.Equal(t, 66, scorer.Score(context.Background(), "203.0.113.9", "RU", signals))
}

func TestProviderZeroRiskIsAVerdict(t *testing.T) {
	scorer := NewScorerWithLookup(config.RiskScorerProvider, noLookup)

	// The provider affirmatively scored the IP at zero; flags do not
	// reinstate the heuristics.
	signals := Signals{OK: true, Risk: 0, HasRisk: true, VPN: true}
	assert.Equal(t, 0, scorer.Score(context.Background(), "52.12.0.1", "RU", signals))
}

func TestProviderScoreAdditiveFallback(t *testing.T) {
	scorer := NewScorerWithLookup(config.RiskScorerProvider, noLookup)
	ctx := context.Background()

	// Degraded verdict, clean residential IP.
	assert.Equal(t, 0, scorer.Score(ctx, "203.0.113.9", "US", Signals{}))

	// High risk country only.
	assert.Equal(t, 30, scorer.Score(ctx, "203.0.113.9", "RU", Signals{}))

	// Medium risk country only.
	assert.Equal(t, 15, scorer.Score(ctx, "203.0.113.9", "IN", Signals{}))

	// Data center range.
	assert.Equal(t, 25, scorer.Score(ctx, "52.12.0.1", "US", Signals{}))

	// VPN flag without a provider risk figure.
	assert.Equal(t, 50, scorer.Score(ctx, "203.0.113.9", "US", Signals{OK: true, VPN: true}))
}

func TestProviderScoreReverseDNS(t *testing.T) {
	scorer := NewScorerWithLookup(config.RiskScorerProvider, namesLookup("crawl-66-249.googlebot.com."))
	assert.Equal(t, 15, scorer.Score(context.Background(), "203.0.113.9", "US", Signals{}))
}

func TestProviderScoreClamped(t *testing.T) {
	scorer := NewScorerWithLookup(config.RiskScorerProvider, namesLookup("proxy1.example.net."))
	score := scorer.Score(context.Background(), "52.12.0.1", "RU", Signals{OK: true, VPN: true})
	// 50 + 30 + 25 + 15 clamps to the ceiling.
	assert.Equal(t, 100, score)
}

func TestWeightedScore(t *testing.T) {
	scorer := NewScorerWithLookup(config.RiskScorerWeighted, noLookup)
	ctx := context.Background()

	assert.Equal(t, 0, scorer.Score(ctx, "203.0.113.9", "US", Signals{OK: true}))
	assert.Equal(t, 20, scorer.Score(ctx, "203.0.113.9", "US", Signals{OK: true, VPN: true}))
	assert.Equal(t, 35, scorer.Score(ctx, "203.0.113.9", "US", Signals{OK: true, VPN: true, Proxy: true}))
	assert.Equal(t, 30, scorer.Score(ctx, "203.0.113.9", "US", Signals{OK: true, Tor: true}))
	assert.Equal(t, 25, scorer.Score(ctx, "203.0.113.9", "XX", Signals{OK: true}))
	assert.Equal(t, 50, scorer.Score(ctx, "203.0.113.9", "US", Signals{OK: true, Risk: 5}))
	assert.Equal(t, 100, scorer.Score(ctx, "203.0.113.9", "T1", Signals{OK: true, Risk: 9, Tor: true}))
}

func TestDetectVPN(t *testing.T) {
	scorer := NewScorerWithLookup(config.RiskScorerProvider, noLookup)
	ctx := context.Background()

	// Live provider flags settle it.
	assert.True(t, scorer.DetectVPN(ctx, "203.0.113.9", Signals{OK: true, VPN: true}))
	assert.True(t, scorer.DetectVPN(ctx, "203.0.113.9", Signals{OK: true, Tor: true}))

	// Degraded verdict falls back to the anonymizer ranges.
	assert.True(t, scorer.DetectVPN(ctx, "104.16.0.1", Signals{}))
	assert.False(t, scorer.DetectVPN(ctx, "203.0.113.9", Signals{}))
	assert.False(t, scorer.DetectVPN(ctx, "not-an-ip", Signals{}))

	// Flags without a live verdict do not count.
	assert.False(t, scorer.DetectVPN(ctx, "203.0.113.9", Signals{VPN: true}))
}

func TestDetectVPNReverseDNS(t *testing.T) {
	ctx := context.Background()

	scorer := NewScorerWithLookup(config.RiskScorerProvider, namesLookup("gw1.vpn.example.net."))
	assert.True(t, scorer.DetectVPN(ctx, "203.0.113.9", Signals{}))

	scorer = NewScorerWithLookup(config.RiskScorerProvider, namesLookup("PROXY-7.example.net."))
	assert.True(t, scorer.DetectVPN(ctx, "203.0.113.9", Signals{}))

	scorer = NewScorerWithLookup(config.RiskScorerProvider, namesLookup("static-203-0-113-9.isp.example.net."))
	assert.False(t, scorer.DetectVPN(ctx, "203.0.113.9", Signals{}))
}

func TestDataCenterRangeMatching(t *testing.T) {
	assert.True(t, inDataCenterRange("52.0.0.1"))
	assert.True(t, inDataCenterRange("35.190.200.4"))
	assert.False(t, inDataCenterRange("203.0.113.9"))
	assert.False(t, inDataCenterRange("not-an-ip"))
}
