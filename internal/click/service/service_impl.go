package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/afftrack/clickpipe/internal/cache"
	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	"github.com/afftrack/clickpipe/internal/clock"
	"github.com/afftrack/clickpipe/internal/config"
	"github.com/afftrack/clickpipe/internal/device"
	"github.com/afftrack/clickpipe/internal/fraud"
	"github.com/afftrack/clickpipe/internal/geo"
	"github.com/afftrack/clickpipe/internal/observability/metrics"
	"github.com/afftrack/clickpipe/internal/offer"
	"github.com/afftrack/clickpipe/internal/referrer"
	"github.com/afftrack/clickpipe/internal/traffic"
	"github.com/afftrack/clickpipe/internal/utmsource"
	"github.com/afftrack/clickpipe/pkg/db"
)

const duplicateWindow = 24 * time.Hour

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	GenID *snowflake.Node
	Cache cache.Cache

	Repo      clickdomain.Repository
	Offers    offer.Repository
	Referrers referrer.Repository
	Sources   utmsource.Repository

	Geo     *geo.Resolver
	Fraud   *fraud.Provider
	Scorer  *fraud.Scorer
	Synth   *traffic.Synthesizer
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log   *zap.Logger
	cfg   config.Config
	clock clock.Clock
	genID *snowflake.Node
	cache cache.Cache

	repo      clickdomain.Repository
	offers    offer.Repository
	referrers referrer.Repository
	sources   utmsource.Repository

	geo     *geo.Resolver
	fraud   *fraud.Provider
	scorer  *fraud.Scorer
	synth   *traffic.Synthesizer
	metrics *metrics.Metrics
}

func NewService(p ServiceParam) clickdomain.Service {
	return &Service{
		log:   p.Log.Named("click.service"),
		cfg:   p.Cfg,
		clock: p.Clock,
		genID: p.GenID,
		cache: p.Cache,

		repo:      p.Repo,
		offers:    p.Offers,
		referrers: p.Referrers,
		sources:   p.Sources,

		geo:     p.Geo,
		fraud:   p.Fraud,
		scorer:  p.Scorer,
		synth:   p.Synth,
		metrics: p.Metrics,
	}
}

func (s *Service) Track(ctx context.Context, req clickdomain.TrackRequest) (*clickdomain.TrackResult, error) {
	start := s.clock.Now()

	result, err := s.track(ctx, req)
	s.metrics.ObserveTrackDuration(time.Since(start).Seconds())
	if err != nil {
		s.observeRejection(err)
	} else {
		s.metrics.ClickAccepted()
	}
	return result, err
}

func (s *Service) track(ctx context.Context, req clickdomain.TrackRequest) (*clickdomain.TrackResult, error) {
	now := s.clock.Now()

	off, err := s.offers.FindByID(ctx, req.OfferID)
	if err != nil {
		return nil, err
	}

	refExists, err := s.referrers.Exists(ctx, req.Ref)
	if err != nil {
		return nil, err
	}
	if !refExists {
		return nil, clickdomain.ErrReferrerNotFound
	}

	if off.Expired(now) {
		return nil, &clickdomain.PolicyRejection{
			StatusCode: http.StatusGone,
			Heading:    "Expired",
			Message:    "This offer has expired",
		}
	}

	if err := s.checkCaps(ctx, off, now); err != nil {
		return nil, err
	}

	location := s.geo.Lookup(ctx, req.RealIP)
	signals := s.fraud.Lookup(ctx, req.RealIP)
	if !signals.OK {
		s.metrics.UpstreamFallback(metrics.FallbackSourceFraud)
	}

	clickID, err := s.newClickID(ctx, location.CountryCode, now)
	if err != nil {
		return nil, err
	}

	vpnDetected := s.scorer.DetectVPN(ctx, req.RealIP, signals)
	if err := s.checkFraudPolicy(off, clickID, vpnDetected, signals); err != nil {
		return nil, err
	}

	riskScore := s.scorer.Score(ctx, req.RealIP, location.CountryCode, signals)
	if off.MaxRiskScore > 0 && riskScore > off.MaxRiskScore {
		return nil, &clickdomain.PolicyRejection{
			StatusCode: http.StatusForbidden,
			Heading:    "Anti-Fraud",
			Message:    "Traffic risk score too high for this offer",
			ClickID:    clickID,
		}
	}

	// UTM synthesis runs before the duplicate gate so the per-IP debounce
	// window advances even for rejected repeats.
	s.fillSyntheticUTM(ctx, &req)

	if !off.AllowMultipleClicks {
		recent, err := s.repo.RecentByIP(ctx, off.ID, req.RealIP, now.Add(-duplicateWindow))
		if err != nil {
			return nil, err
		}
		if recent != nil {
			return nil, &clickdomain.PolicyRejection{
				StatusCode: http.StatusConflict,
				Heading:    "Anti-Fraud",
				Message:    "Duplicate click detected",
				ClickID:    recent.ClickID,
			}
		}
	}

	info := device.Classify(req.UserAgent)
	source := traffic.Attribute(traffic.AttributeInput{
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		UTMTerm:     req.UTMTerm,
		UTMContent:  req.UTMContent,
		Referer:     req.Referer,
		UserAgent:   req.UserAgent,
	})

	click := s.buildClick(req, off, clickID, location, info, source, signals, vpnDetected, riskScore)
	click.CreatedAt = now
	click.UpdatedAt = now

	if err := s.insertClick(ctx, click, location.CountryCode, now); err != nil {
		return nil, err
	}

	s.cacheClick(ctx, click)

	redirectURL := s.redirectURL(off, click, req)

	s.log.Info("click tracked",
		zap.String("click_id", click.ClickID),
		zap.Int64("offer_id", off.ID),
		zap.String("country", click.Country),
		zap.String("device_type", click.DeviceType),
		zap.Int("ip_risk_score", click.IPRiskScore),
	)

	return &clickdomain.TrackResult{
		ClickID:     click.ClickID,
		RedirectURL: redirectURL,
	}, nil
}

func (s *Service) checkCaps(ctx context.Context, off *offer.Offer, now time.Time) error {
	if off.DailyCap != nil && *off.DailyCap > 0 {
		count, err := s.repo.CountForOfferSince(ctx, off.ID, startOfDay(now))
		if err != nil {
			return err
		}
		if count >= *off.DailyCap {
			return &clickdomain.PolicyRejection{
				StatusCode: http.StatusTooManyRequests,
				Heading:    "Cap Reached",
				Message:    "This offer has reached its daily cap",
			}
		}
	}

	if off.TotalCap != nil && *off.TotalCap > 0 {
		count, err := s.repo.CountForOffer(ctx, off.ID)
		if err != nil {
			return err
		}
		if count >= *off.TotalCap {
			return &clickdomain.PolicyRejection{
				StatusCode: http.StatusTooManyRequests,
				Heading:    "Cap Reached",
				Message:    "This offer has reached its total cap",
			}
		}
	}

	return nil
}

func (s *Service) checkFraudPolicy(off *offer.Offer, clickID string, vpnDetected bool, signals fraud.Signals) error {
	blocked := (vpnDetected && !off.VPNAllowed) ||
		(signals.Tor && !off.TorAllowed) ||
		(signals.Proxy && !off.ProxyAllowed)
	if !blocked {
		return nil
	}
	return &clickdomain.PolicyRejection{
		StatusCode: http.StatusForbidden,
		Heading:    "Anti-Fraud",
		Message:    "Traffic from VPN/Proxy/Tor is not allowed for this offer",
		ClickID:    clickID,
	}
}

// fillSyntheticUTM replaces an empty UTM set with a synthesized one when the
// request names a catalog source via utm_id. An explicit utm_source always
// wins.
func (s *Service) fillSyntheticUTM(ctx context.Context, req *clickdomain.TrackRequest) {
	if req.UTMID == nil || req.UTMSource != "" {
		return
	}
	src, err := s.sources.FindByID(ctx, *req.UTMID)
	if err != nil {
		if !errors.Is(err, utmsource.ErrNotFound) {
			s.log.Warn("utm source lookup failed", zap.Int64("utm_id", *req.UTMID), zap.Error(err))
		}
		return
	}

	params := s.synth.Generate(ctx, src.Slug, req.RealIP)
	req.UTMSource = params.Source
	req.UTMMedium = params.Medium
	req.UTMCampaign = params.Campaign
	req.UTMTerm = params.Term
	req.UTMContent = params.Content
}

func (s *Service) buildClick(
	req clickdomain.TrackRequest,
	off *offer.Offer,
	clickID string,
	location geo.Location,
	info device.Info,
	source traffic.Source,
	signals fraud.Signals,
	vpnDetected bool,
	riskScore int,
) *clickdomain.Click {
	click := &clickdomain.Click{
		ID:      s.genID.Generate().Int64(),
		ClickID: clickID,
		OfferID: off.ID,
		RefID:   req.Ref,

		IP:        req.IP,
		RealIP:    req.RealIP,
		UserAgent: req.UserAgent,

		DeviceType: info.Type,
		Browser:    info.Browser,
		Platform:   info.Platform,

		Country: location.CountryCode,
		City:    location.City,
		Region:  location.Region,

		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		UTMTerm:     req.UTMTerm,
		UTMContent:  req.UTMContent,

		VPNDetected:   vpnDetected,
		ProxyDetected: signals.Proxy,
		TorDetected:   signals.Tor,
		IPRiskScore:   riskScore,
		FraudScore:    signals.Risk,

		Status: clickdomain.StatusPending,
	}

	for position := 1; position <= 10; position++ {
		if value, ok := req.SubIDs[position]; ok {
			click.SetSubID(position, value)
		}
	}

	click.Metadata = datatypes.JSONMap{
		"geo": map[string]any{
			"country":      location.Country,
			"country_code": location.CountryCode,
			"region":       location.Region,
			"city":         location.City,
			"latitude":     location.Latitude,
			"longitude":    location.Longitude,
			"timezone":     location.Timezone,
			"isp":          location.ISP,
		},
		"device": map[string]any{
			"type":             info.Type,
			"platform":         info.Platform,
			"platform_version": info.PlatformVersion,
			"browser":          info.Browser,
			"browser_version":  info.BrowserVersion,
			"os":               info.OS,
		},
		"traffic_source": source,
		"fraud": map[string]any{
			"vpn_detected":   vpnDetected,
			"proxy_detected": signals.Proxy,
			"tor_detected":   signals.Tor,
			"ip_risk_score":  riskScore,
			"fraud_score":    signals.Risk,
			"asn":            signals.ASN,
			"provider":       signals.Provider,
		},
	}
	if req.Fingerprint != "" {
		click.Metadata["fingerprint"] = req.Fingerprint
	}
	if req.TimezoneOffset != nil {
		click.Metadata["timezone_offset"] = *req.TimezoneOffset
	}
	if req.LocalTime != "" {
		click.Metadata["local_time"] = req.LocalTime
	}

	return click
}

// insertClick retries once on a click_id collision; the unique index is the
// backstop when two instances race the same daily sequence number.
func (s *Service) insertClick(ctx context.Context, click *clickdomain.Click, countryCode string, now time.Time) error {
	err := s.repo.Insert(ctx, click)
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return err
	}

	clickID, seqErr := s.newClickID(ctx, countryCode, now)
	if seqErr != nil {
		return seqErr
	}
	click.ClickID = clickID
	click.ID = s.genID.Generate().Int64()
	return s.repo.Insert(ctx, click)
}

func (s *Service) observeRejection(err error) {
	var rejection *clickdomain.PolicyRejection
	if !errors.As(err, &rejection) {
		s.metrics.ClickRejected(metrics.RejectReasonValidation)
		return
	}
	switch rejection.StatusCode {
	case http.StatusGone:
		s.metrics.ClickRejected(metrics.RejectReasonExpired)
	case http.StatusTooManyRequests:
		if strings.Contains(rejection.Message, "daily") {
			s.metrics.ClickRejected(metrics.RejectReasonDailyCap)
		} else {
			s.metrics.ClickRejected(metrics.RejectReasonTotalCap)
		}
	case http.StatusConflict:
		s.metrics.ClickRejected(metrics.RejectReasonDuplicate)
	case http.StatusForbidden:
		if strings.Contains(rejection.Message, "risk score") {
			s.metrics.ClickRejected(metrics.RejectReasonRiskScore)
		} else {
			s.metrics.ClickRejected(metrics.RejectReasonAntiFraud)
		}
	default:
		s.metrics.ClickRejected(metrics.RejectReasonValidation)
	}
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
