package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/afftrack/clickpipe/internal/cache"
	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	"github.com/afftrack/clickpipe/internal/click/repository"
	"github.com/afftrack/clickpipe/internal/clock"
	"github.com/afftrack/clickpipe/internal/config"
	"github.com/afftrack/clickpipe/internal/fraud"
	"github.com/afftrack/clickpipe/internal/geo"
	"github.com/afftrack/clickpipe/internal/offer"
	"github.com/afftrack/clickpipe/internal/referrer"
	"github.com/afftrack/clickpipe/internal/traffic"
	"github.com/afftrack/clickpipe/internal/utmsource"
)

const (
	cleanIP = "203.0.113.10"
	vpnIP   = "203.0.113.66"
	riskyIP = "203.0.113.77"

	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var baseTime = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   clickdomain.Service
	param ServiceParam
	db    *gorm.DB
	clk   *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&offer.Offer{},
		&referrer.Referrer{},
		&utmsource.Source{},
		&clickdomain.Click{},
	))

	geoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","country":"United States","countryCode":"US","regionName":"California","city":"San Jose","lat":37.33,"lon":-121.89,"timezone":"America/Los_Angeles","isp":"Example ISP","org":"Example Org","as":"AS64501 Example"}`)
	}))
	t.Cleanup(geoServer.Close)

	fraudServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := path.Base(r.URL.Path)
		switch ip {
		case vpnIP:
			fmt.Fprintf(w, `{"status":"ok","%s":{"vpn":"yes","proxy":"no","risk":0}}`, ip)
		case riskyIP:
			fmt.Fprintf(w, `{"status":"ok","%s":{"proxy":"no","risk":90}}`, ip)
		default:
			fmt.Fprintf(w, `{"status":"ok","%s":{"proxy":"no","risk":0}}`, ip)
		}
	}))
	t.Cleanup(fraudServer.Close)

	cfg := config.Config{
		RiskScorer:      config.RiskScorerProvider,
		TrackerParam:    "click_id",
		GeoAPIBaseURL:   geoServer.URL,
		FraudAPIBaseURL: fraudServer.URL,
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	store := cache.NewMemory()
	clk := clock.NewFakeClock(baseTime)
	log := zap.NewNop()

	param := ServiceParam{
		Log:   log,
		Cfg:   cfg,
		Clock: clk,
		GenID: node,
		Cache: store,

		Repo:      repository.NewRepository(conn),
		Offers:    offer.NewRepository(conn),
		Referrers: referrer.NewRepository(conn),
		Sources:   utmsource.NewRepository(conn),

		Geo:    geo.NewResolver(geoServer.URL, store, log),
		Fraud:  fraud.NewProvider(cfg, store, log),
		Scorer: fraud.NewScorerWithLookup(config.RiskScorerProvider, func(context.Context, string) []string { return nil }),
		Synth:  traffic.NewSynthesizerWithSeed(store, clk, 42),
	}

	return &testEnv{
		svc:   NewService(param),
		param: param,
		db:    conn,
		clk:   clk,
	}
}

func (e *testEnv) seedReferrer(t *testing.T) int64 {
	t.Helper()
	ref := &referrer.Referrer{ID: 7, Name: "Partner One", Email: "partner@example.com"}
	require.NoError(t, e.db.Create(ref).Error)
	return ref.ID
}

func (e *testEnv) seedOffer(t *testing.T, mutate func(*offer.Offer)) *offer.Offer {
	t.Helper()
	off := &offer.Offer{
		ID:     101,
		UserID: 1,
		Name:   "Spring Promo",
		DeviceURLs: datatypes.JSONMap{
			"default": "https://landing.example.com/offer",
		},
		Status:              "active",
		AllowMultipleClicks: true,
		MaxRiskScore:        100,
	}
	if mutate != nil {
		mutate(off)
	}
	require.NoError(t, e.db.Create(off).Error)
	return off
}

func trackRequest(offerID, ref int64) clickdomain.TrackRequest {
	return clickdomain.TrackRequest{
		OfferID:     offerID,
		Ref:         ref,
		IP:          "10.0.0.1",
		RealIP:      cleanIP,
		UserAgent:   desktopUA,
		PassThrough: url.Values{},
	}
}

func rejectionFrom(t *testing.T, err error) *clickdomain.PolicyRejection {
	t.Helper()
	var rejection *clickdomain.PolicyRejection
	require.True(t, errors.As(err, &rejection), "expected a policy rejection, got %v", err)
	return rejection
}

func TestTrackMintsClickAndRedirect(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, nil)

	result, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	assert.Equal(t, "US150320250001", result.ClickID)
	assert.Equal(t, "https://landing.example.com/offer?click_id=US150320250001", result.RedirectURL)

	var click clickdomain.Click
	require.NoError(t, env.db.Where("click_id = ?", result.ClickID).First(&click).Error)
	assert.Equal(t, off.ID, click.OfferID)
	assert.Equal(t, ref, click.RefID)
	assert.Equal(t, "US", click.Country)
	assert.Equal(t, "desktop", click.DeviceType)
	assert.Equal(t, clickdomain.StatusPending, click.Status)
	assert.False(t, click.Converted)
	assert.Zero(t, click.IPRiskScore)
}

func TestTrackSequenceIncrementsPerDay(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, nil)

	first, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)
	second, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	assert.Equal(t, "US150320250001", first.ClickID)
	assert.Equal(t, "US150320250002", second.ClickID)
}

func TestTrackSequenceFallsBackToCount(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, nil)

	_, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	param := env.param
	param.Cache = noCounterCache{param.Cache}
	svc := NewService(param)

	result, err := svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)
	assert.Equal(t, "US150320250002", result.ClickID)
}

type noCounterCache struct{ cache.Cache }

func (noCounterCache) Incr(context.Context, string, time.Duration) (int64, bool) {
	return 0, false
}

func TestTrackUnknownOffer(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)

	_, err := env.svc.Track(context.Background(), trackRequest(999, ref))
	assert.ErrorIs(t, err, offer.ErrNotFound)
}

func TestTrackUnknownReferrer(t *testing.T) {
	env := newTestEnv(t)
	off := env.seedOffer(t, nil)

	_, err := env.svc.Track(context.Background(), trackRequest(off.ID, 999))
	assert.ErrorIs(t, err, clickdomain.ErrReferrerNotFound)
}

func TestTrackExpiredOffer(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	expired := baseTime.Add(-time.Hour)
	off := env.seedOffer(t, func(o *offer.Offer) { o.ExpiresAt = &expired })

	_, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))

	rejection := rejectionFrom(t, err)
	assert.Equal(t, http.StatusGone, rejection.StatusCode)
	assert.Equal(t, "Expired", rejection.Heading)
}

func TestTrackDailyCap(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	limit := int64(1)
	off := env.seedOffer(t, func(o *offer.Offer) { o.DailyCap = &limit })

	_, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	_, err = env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	rejection := rejectionFrom(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rejection.StatusCode)
	assert.Contains(t, rejection.Message, "daily cap")
}

func TestTrackTotalCap(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	limit := int64(1)
	off := env.seedOffer(t, func(o *offer.Offer) { o.TotalCap = &limit })

	_, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	_, err = env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	rejection := rejectionFrom(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rejection.StatusCode)
	assert.Contains(t, rejection.Message, "total cap")
}

func TestTrackBlocksVPNTraffic(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, nil)

	req := trackRequest(off.ID, ref)
	req.RealIP = vpnIP

	_, err := env.svc.Track(context.Background(), req)
	rejection := rejectionFrom(t, err)
	assert.Equal(t, http.StatusForbidden, rejection.StatusCode)
	assert.Equal(t, "Anti-Fraud", rejection.Heading)
	assert.Equal(t, "US150320250001", rejection.ClickID, "the rejection still carries the minted id")
}

func TestTrackAllowsVPNWhenOfferPermits(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, func(o *offer.Offer) { o.VPNAllowed = true })

	req := trackRequest(off.ID, ref)
	req.RealIP = vpnIP

	result, err := env.svc.Track(context.Background(), req)
	require.NoError(t, err)

	var click clickdomain.Click
	require.NoError(t, env.db.Where("click_id = ?", result.ClickID).First(&click).Error)
	assert.True(t, click.VPNDetected)
}

func TestTrackBlocksHighRiskScore(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, func(o *offer.Offer) { o.MaxRiskScore = 50 })

	req := trackRequest(off.ID, ref)
	req.RealIP = riskyIP

	_, err := env.svc.Track(context.Background(), req)
	rejection := rejectionFrom(t, err)
	assert.Equal(t, http.StatusForbidden, rejection.StatusCode)
	assert.Contains(t, rejection.Message, "risk score")
}

func TestTrackDuplicateWithinWindow(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, func(o *offer.Offer) { o.AllowMultipleClicks = false })

	first, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	env.clk.Advance(time.Hour)

	_, err = env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	rejection := rejectionFrom(t, err)
	assert.Equal(t, http.StatusConflict, rejection.StatusCode)
	assert.Equal(t, first.ClickID, rejection.ClickID, "the rejection names the prior click")
}

func TestTrackDuplicateWindowExpires(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, func(o *offer.Offer) { o.AllowMultipleClicks = false })

	_, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	env.clk.Advance(25 * time.Hour)

	_, err = env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	assert.NoError(t, err)
}

func TestTrackDuplicateStillAdvancesUTMDebounce(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, func(o *offer.Offer) { o.AllowMultipleClicks = false })
	source := &utmsource.Source{ID: 3, Name: "Facebook", Slug: "facebook", Status: "active"}
	require.NoError(t, env.db.Create(source).Error)

	_, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	req := trackRequest(off.ID, ref)
	utmID := source.ID
	req.UTMID = &utmID

	_, err = env.svc.Track(context.Background(), req)
	rejection := rejectionFrom(t, err)
	assert.Equal(t, http.StatusConflict, rejection.StatusCode)

	_, seen := env.param.Cache.Get(context.Background(), "utm:params:"+cleanIP)
	assert.True(t, seen, "synthesis runs before the duplicate gate")
}

func TestTrackSynthesizesUTMFromCatalog(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, nil)
	source := &utmsource.Source{ID: 3, Name: "Facebook", Slug: "facebook", Status: "active"}
	require.NoError(t, env.db.Create(source).Error)

	req := trackRequest(off.ID, ref)
	utmID := source.ID
	req.UTMID = &utmID

	result, err := env.svc.Track(context.Background(), req)
	require.NoError(t, err)

	var click clickdomain.Click
	require.NoError(t, env.db.Where("click_id = ?", result.ClickID).First(&click).Error)
	assert.Equal(t, "facebook", click.UTMSource)
	assert.NotEmpty(t, click.UTMMedium)
	assert.NotEmpty(t, click.UTMCampaign)
	assert.NotEmpty(t, click.UTMContent)
}

func TestTrackExplicitUTMWinsOverCatalog(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, nil)
	source := &utmsource.Source{ID: 3, Name: "Facebook", Slug: "facebook", Status: "active"}
	require.NoError(t, env.db.Create(source).Error)

	req := trackRequest(off.ID, ref)
	utmID := source.ID
	req.UTMID = &utmID
	req.UTMSource = "newsletter"
	req.UTMMedium = "email"

	result, err := env.svc.Track(context.Background(), req)
	require.NoError(t, err)

	var click clickdomain.Click
	require.NoError(t, env.db.Where("click_id = ?", result.ClickID).First(&click).Error)
	assert.Equal(t, "newsletter", click.UTMSource)
	assert.Equal(t, "email", click.UTMMedium)
}

func TestTrackExpandsRedirectPlaceholders(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, func(o *offer.Offer) {
		o.DeviceURLs = datatypes.JSONMap{
			"default": "https://landing.example.com/l/{click_id}?c={country}&d={device}",
		}
	})

	req := trackRequest(off.ID, ref)
	req.SubIDs = map[int]string{1: "aff-55"}
	req.PassThrough = url.Values{"gclid": {"abc123"}}

	result, err := env.svc.Track(context.Background(), req)
	require.NoError(t, err)

	parsed, err := url.Parse(result.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "/l/"+result.ClickID, parsed.Path)
	assert.Equal(t, "US", parsed.Query().Get("c"))
	assert.Equal(t, "desktop", parsed.Query().Get("d"))
	assert.Equal(t, result.ClickID, parsed.Query().Get("click_id"))
	assert.Equal(t, "abc123", parsed.Query().Get("gclid"))
}

func TestTrackPicksDeviceMatchedURL(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, func(o *offer.Offer) {
		o.DeviceURLs = datatypes.JSONMap{
			"default": "https://landing.example.com/desktop",
			"mobile":  "https://m.landing.example.com/offer",
		}
	})

	req := trackRequest(off.ID, ref)
	req.UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"

	result, err := env.svc.Track(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, result.RedirectURL, "https://m.landing.example.com/offer")
}

func TestConvertRecordsConversion(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	payout, revenue := 5.0, 8.0
	off := env.seedOffer(t, func(o *offer.Offer) {
		o.Payout = &payout
		o.Revenue = &revenue
	})

	tracked, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	env.clk.Advance(30 * time.Minute)
	amount := 12.5
	result, err := env.svc.Convert(context.Background(), clickdomain.ConvertRequest{
		ClickID:       tracked.ClickID,
		Amount:        &amount,
		TransactionID: "tx-1001",
		SourceIP:      "198.51.100.4",
	})
	require.NoError(t, err)

	assert.False(t, result.AlreadyConverted)
	assert.Equal(t, tracked.ClickID, result.ClickID)
	assert.Equal(t, off.ID, result.OfferID)
	assert.Equal(t, 12.5, result.Payout, "explicit amount overrides the offer payout")
	assert.Equal(t, 8.0, result.Revenue, "revenue falls back to the offer")
	require.NotNil(t, result.ConvertedAt)
	assert.Equal(t, baseTime.Add(30*time.Minute), result.ConvertedAt.UTC())

	var click clickdomain.Click
	require.NoError(t, env.db.Where("click_id = ?", tracked.ClickID).First(&click).Error)
	assert.True(t, click.Converted)
	assert.Equal(t, clickdomain.StatusConverted, click.Status)
	assert.Contains(t, click.Metadata, "conversion")
}

func TestConvertUsesOfferAmountsWhenOmitted(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	payout, revenue := 5.0, 8.0
	off := env.seedOffer(t, func(o *offer.Offer) {
		o.Payout = &payout
		o.Revenue = &revenue
	})

	tracked, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	result, err := env.svc.Convert(context.Background(), clickdomain.ConvertRequest{ClickID: tracked.ClickID})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.Payout)
	assert.Equal(t, 8.0, result.Revenue)
}

func TestConvertIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ref := env.seedReferrer(t)
	off := env.seedOffer(t, nil)

	tracked, err := env.svc.Track(context.Background(), trackRequest(off.ID, ref))
	require.NoError(t, err)

	first, err := env.svc.Convert(context.Background(), clickdomain.ConvertRequest{ClickID: tracked.ClickID})
	require.NoError(t, err)

	env.clk.Advance(2 * time.Hour)

	second, err := env.svc.Convert(context.Background(), clickdomain.ConvertRequest{ClickID: tracked.ClickID})
	require.NoError(t, err)
	assert.True(t, second.AlreadyConverted)
	require.NotNil(t, second.ConvertedAt)
	assert.Equal(t, first.ConvertedAt.UTC(), second.ConvertedAt.UTC())
}

func TestConvertUnknownClick(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Convert(context.Background(), clickdomain.ConvertRequest{ClickID: "US150320259999"})
	assert.ErrorIs(t, err, clickdomain.ErrClickNotFound)
}

func TestValidClickID(t *testing.T) {
	assert.True(t, ValidClickID("US150320250001"))
	assert.True(t, ValidClickID("DE0101202612345"))
	assert.False(t, ValidClickID(""))
	assert.False(t, ValidClickID("us150320250001"))
	assert.False(t, ValidClickID("US15032025"))
	assert.False(t, ValidClickID("150320250001US"))
	assert.False(t, ValidClickID("8b90aa57-3c56-4e6b-9f7a-000000000000"))
}
