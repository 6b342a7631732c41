// Package fraud scores incoming clicks. Signals come from an external IP
// reputation provider and are folded into a 0-100 risk score by one of two
// scorers; a provider outage degrades to all-clear signals and never blocks
// the tracking path.
package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/afftrack/clickpipe/internal/cache"
	"github.com/afftrack/clickpipe/internal/config"
)

// Signals is the provider verdict for one IP. OK is false when the verdict
// came from the degraded path and the flags carry no information. HasRisk is
// true only when the reply included a risk figure; an affirmative risk of
// zero is a real verdict, distinct from an absent field.
type Signals struct {
	OK       bool   `json:"ok"`
	Proxy    bool   `json:"proxy"`
	VPN      bool   `json:"vpn"`
	Tor      bool   `json:"tor"`
	Risk     int    `json:"risk"`
	HasRisk  bool   `json:"has_risk"`
	ASN      string `json:"asn"`
	Provider string `json:"provider"`
	Type     string `json:"type"`
}

const (
	signalsTTL     = time.Hour
	failureTTL     = 15 * time.Minute
	providerPrefix = "fraud:"
)

// Provider queries the reputation API and caches verdicts per IP. Successful
// lookups are held for an hour, failures for fifteen minutes so a provider
// outage does not turn into a request storm.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   cache.Cache
	log     *zap.Logger
}

func NewProvider(cfg config.Config, store cache.Cache, log *zap.Logger) *Provider {
	return &Provider{
		baseURL: cfg.FraudAPIBaseURL,
		apiKey:  cfg.FraudAPIKey,
		client:  &http.Client{Timeout: 5 * time.Second},
		cache:   store,
		log:     log.Named("fraud.provider"),
	}
}

// Lookup returns the cached or freshly fetched verdict for ip. It never
// returns an error; callers always get usable Signals.
func (p *Provider) Lookup(ctx context.Context, ip string) Signals {
	key := providerPrefix + ip

	var cached Signals
	if cache.GetJSON(ctx, p.cache, key, &cached) {
		return cached
	}

	signals, err := p.fetch(ctx, ip)
	if err != nil {
		p.log.Warn("reputation lookup failed", zap.String("ip", ip), zap.Error(err))
		degraded := Signals{}
		cache.PutJSON(ctx, p.cache, key, degraded, failureTTL)
		return degraded
	}

	cache.PutJSON(ctx, p.cache, key, signals, signalsTTL)
	return signals
}

type providerEntry struct {
	ASN      string `json:"asn"`
	Provider string `json:"provider"`
	Type     string `json:"type"`
	Proxy    string `json:"proxy"`
	VPN      string `json:"vpn"`
	Tor      string `json:"tor"`
	Risk     *int   `json:"risk"`
}

func (p *Provider) fetch(ctx context.Context, ip string) (Signals, error) {
	endpoint := fmt.Sprintf("%s/%s", p.baseURL, url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Signals{}, err
	}
	q := req.URL.Query()
	q.Set("vpn", "1")
	q.Set("asn", "1")
	q.Set("risk", "1")
	if p.apiKey != "" {
		q.Set("key", p.apiKey)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return Signals{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Signals{}, fmt.Errorf("reputation api returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Signals{}, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Signals{}, err
	}

	var status string
	if raw, ok := envelope["status"]; ok {
		_ = json.Unmarshal(raw, &status)
	}
	if status != "ok" && status != "warning" {
		return Signals{}, fmt.Errorf("reputation api status %q", status)
	}

	raw, ok := envelope[ip]
	if !ok {
		return Signals{}, fmt.Errorf("reputation api reply missing %s", ip)
	}
	var entry providerEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Signals{}, err
	}

	signals := Signals{
		OK:       true,
		Proxy:    entry.Proxy == "yes",
		VPN:      entry.VPN == "yes" || entry.Type == "VPN",
		Tor:      entry.Tor == "yes" || entry.Type == "TOR",
		ASN:      entry.ASN,
		Provider: entry.Provider,
		Type:     entry.Type,
	}
	if entry.Risk != nil {
		signals.Risk = *entry.Risk
		signals.HasRisk = true
	}
	return signals, nil
}
