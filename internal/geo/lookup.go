package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/afftrack/clickpipe/internal/cache"
	"github.com/afftrack/clickpipe/internal/observability/metrics"
)

const (
	lookupTimeout  = 5 * time.Second
	lookupCacheTTL = time.Hour
)

// Location carries the geography attributes attached to a click.
type Location struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"organization"`
	ASN         string  `json:"asn"`
}

// Unknown is the fully-populated zero-value record returned when the
// provider fails or has nothing for the address.
func Unknown() Location {
	return Location{
		Country:     "Unknown",
		CountryCode: "XX",
		Region:      "Unknown",
		City:        "Unknown",
		Timezone:    "Unknown",
		ISP:         "Unknown",
		Org:         "Unknown",
		ASN:         "Unknown",
	}
}

// Resolver looks up geography for an address against an ip-api.com shaped
// endpoint, with a one-hour best-effort cache.
type Resolver struct {
	baseURL     string
	fallbackURL string
	client      *http.Client
	cache       cache.Cache
	log         *zap.Logger
	metrics     *metrics.Metrics
}

func NewResolver(baseURL string, store cache.Cache, log *zap.Logger) *Resolver {
	return &Resolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: lookupTimeout},
		cache:   store,
		log:     log.Named("geo.resolver"),
	}
}

type lookupResponse struct {
	Status      string  `json:"status"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	AS          string  `json:"as"`
}

// Lookup never fails the request: any provider trouble degrades to Unknown.
func (r *Resolver) Lookup(ctx context.Context, ip string) Location {
	cacheKey := "geo:" + ip
	var cached Location
	if cache.GetJSON(ctx, r.cache, cacheKey, &cached) {
		return cached
	}

	location, err := r.fetch(ctx, ip)
	if err != nil && r.fallbackURL != "" {
		r.log.Debug("geolocation primary failed, trying fallback", zap.String("ip", ip), zap.Error(err))
		location, err = r.fetchFallback(ctx, ip)
	}
	if err != nil {
		r.metrics.UpstreamFallback(metrics.FallbackSourceGeo)
		r.log.Debug("geolocation lookup degraded", zap.String("ip", ip), zap.Error(err))
		return Unknown()
	}

	cache.PutJSON(ctx, r.cache, cacheKey, location, lookupCacheTTL)
	return location
}

func (r *Resolver) fetch(ctx context.Context, ip string) (Location, error) {
	url := fmt.Sprintf("%s/%s?fields=status,country,countryCode,regionName,city,lat,lon,timezone,isp,org,as", r.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geolocation provider returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, err
	}
	if body.Status != "success" {
		return Location{}, fmt.Errorf("geolocation provider has no data for %s", ip)
	}

	location := Unknown()
	setIfPresent(&location.Country, body.Country)
	setIfPresent(&location.CountryCode, body.CountryCode)
	setIfPresent(&location.Region, body.RegionName)
	setIfPresent(&location.City, body.City)
	setIfPresent(&location.Timezone, body.Timezone)
	setIfPresent(&location.ISP, body.ISP)
	setIfPresent(&location.Org, body.Org)
	setIfPresent(&location.ASN, body.AS)
	location.Latitude = body.Lat
	location.Longitude = body.Lon
	return location, nil
}

type fallbackResponse struct {
	Error       bool    `json:"error"`
	Reason      string  `json:"reason"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	Org         string  `json:"org"`
	ASN         string  `json:"asn"`
}

// fetchFallback queries the secondary provider, which speaks the
// ipapi.co response shape.
func (r *Resolver) fetchFallback(ctx context.Context, ip string) (Location, error) {
	url := fmt.Sprintf("%s/%s/json/", r.fallbackURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("fallback geolocation provider returned status %d", resp.StatusCode)
	}

	var body fallbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, err
	}
	if body.Error {
		return Location{}, fmt.Errorf("fallback geolocation provider: %s", body.Reason)
	}

	location := Unknown()
	setIfPresent(&location.Country, body.CountryName)
	setIfPresent(&location.CountryCode, body.CountryCode)
	setIfPresent(&location.Region, body.Region)
	setIfPresent(&location.City, body.City)
	setIfPresent(&location.Timezone, body.Timezone)
	setIfPresent(&location.ISP, body.Org)
	setIfPresent(&location.Org, body.Org)
	setIfPresent(&location.ASN, body.ASN)
	location.Latitude = body.Latitude
	location.Longitude = body.Longitude
	return location, nil
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
