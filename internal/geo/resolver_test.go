package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/afftrack/clickpipe/internal/cache"
	"github.com/afftrack/clickpipe/internal/observability/metrics"
)

func TestClientIPHeaderPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "cf header wins over forwarded-for",
			headers: map[string]string{"CF-Connecting-IP": "203.0.113.5", "X-Forwarded-For": "198.51.100.1"},
			want:    "203.0.113.5",
		},
		{
			name:    "forwarded-for takes its first entry",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1, 172.16.0.1"},
			want:    "198.51.100.1",
		},
		{
			name:    "literal true client-ip header is skipped",
			headers: map[string]string{"X-Client-IP": "true", "X-Real-IP": "198.51.100.9"},
			want:    "198.51.100.9",
		},
		{
			name:    "no headers falls back to the peer address",
			headers: nil,
			want:    "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/track-offer", nil)
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}
			assert.Equal(t, tt.want, ClientIP(req, false, "169.197.85.173"))
		})
	}
}

func TestClientIPProductionFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/track-offer", nil)
	req.RemoteAddr = "10.1.2.3:4567"

	assert.Equal(t, "10.1.2.3", ClientIP(req, false, "169.197.85.173"))
	assert.Equal(t, "169.197.85.173", ClientIP(req, true, "169.197.85.173"))
}

func TestIsPrivateIP(t *testing.T) {
	assert.True(t, IsPrivateIP("127.0.0.1"))
	assert.True(t, IsPrivateIP("10.0.0.1"))
	assert.True(t, IsPrivateIP("192.168.1.50"))
	assert.True(t, IsPrivateIP("not-an-ip"))
	assert.True(t, IsPrivateIP(""))
	assert.False(t, IsPrivateIP("203.0.113.10"))
}

func TestLookupParsesAndCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"status":"success","country":"Germany","countryCode":"DE","regionName":"Berlin","city":"Berlin","lat":52.52,"lon":13.4,"timezone":"Europe/Berlin","isp":"Example ISP","org":"Example Org","as":"AS64500 Example"}`)
	}))
	t.Cleanup(server.Close)

	resolver := NewResolver(server.URL, cache.NewMemory(), zap.NewNop())
	ctx := context.Background()

	location := resolver.Lookup(ctx, "203.0.113.10")
	assert.Equal(t, "DE", location.CountryCode)
	assert.Equal(t, "Berlin", location.City)
	assert.Equal(t, 52.52, location.Latitude)

	resolver.Lookup(ctx, "203.0.113.10")
	assert.Equal(t, int32(1), calls.Load(), "second lookup is served from cache")
}

func TestLookupDegradesToUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	resolver := NewResolver(server.URL, cache.NewMemory(), zap.NewNop())

	location := resolver.Lookup(context.Background(), "203.0.113.10")
	assert.Equal(t, Unknown(), location)
}

func TestLookupDegradationCountsFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	registry := prometheus.NewRegistry()
	resolver := NewResolver(server.URL, cache.NewMemory(), zap.NewNop())
	resolver.metrics = metrics.New(registry, metrics.Config{ServiceName: "test", Environment: "test"})

	resolver.Lookup(context.Background(), "203.0.113.10")

	families, err := registry.Gather()
	require.NoError(t, err)

	var value float64
	for _, family := range families {
		if family.GetName() != "clickpipe_upstream_fallbacks_total" {
			continue
		}
		for _, sample := range family.GetMetric() {
			for _, label := range sample.GetLabel() {
				if label.GetName() == "upstream" && label.GetValue() == "geo" {
					value = sample.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, value)
}

func TestLookupUsesFallbackProvider(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(primary.Close)

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/203.0.113.10/json/", r.URL.Path)
		fmt.Fprint(w, `{"city":"Paris","region":"Ile-de-France","country_name":"France","country_code":"FR","latitude":48.85,"longitude":2.35,"timezone":"Europe/Paris","org":"Example Org","asn":"AS64501"}`)
	}))
	t.Cleanup(fallback.Close)

	resolver := NewResolver(primary.URL, cache.NewMemory(), zap.NewNop())
	resolver.fallbackURL = fallback.URL

	location := resolver.Lookup(context.Background(), "203.0.113.10")
	assert.Equal(t, "FR", location.CountryCode)
	assert.Equal(t, "Paris", location.City)
	assert.Equal(t, "France", location.Country)
}

func TestLookupFallbackErrorBody(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(primary.Close)

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":true,"reason":"Reserved IP Address"}`)
	}))
	t.Cleanup(fallback.Close)

	resolver := NewResolver(primary.URL, cache.NewMemory(), zap.NewNop())
	resolver.fallbackURL = fallback.URL

	location := resolver.Lookup(context.Background(), "10.0.0.1")
	assert.Equal(t, Unknown(), location)
}
