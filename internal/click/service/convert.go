package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
)

const (
	clickCachePrefix = "click:"
	clickCacheTTL    = 30 * 24 * time.Hour // typical conversion window
)

// Public click identifiers: country code, ddmmyyyy, daily sequence.
var clickIDPattern = regexp.MustCompile(`^[A-Z]{2}\d{12,}$`)

// ValidClickID reports whether raw matches the minted identifier format.
func ValidClickID(raw string) bool {
	return clickIDPattern.MatchString(raw)
}

func (s *Service) cacheClick(ctx context.Context, click *clickdomain.Click) {
	s.cache.Put(ctx, clickCachePrefix+click.ClickID, strconv.FormatInt(click.ID, 10), clickCacheTTL)
}

// Convert records a conversion postback. Converting an already converted
// click is a no-op that reports the original conversion time.
func (s *Service) Convert(ctx context.Context, req clickdomain.ConvertRequest) (*clickdomain.ConvertResult, error) {
	click, err := s.findClick(ctx, req.ClickID)
	if err != nil {
		return nil, err
	}

	if click.Converted {
		s.metrics.Conversion("already_converted")
		return &clickdomain.ConvertResult{
			AlreadyConverted: true,
			ClickID:          click.ClickID,
			ConvertedAt:      click.ConvertedAt,
		}, nil
	}

	off, err := s.offers.FindByID(ctx, click.OfferID)
	if err != nil {
		return nil, err
	}

	payout := firstAmount(req.Amount, off.Payout)
	revenue := firstAmount(req.Revenue, off.Revenue)
	now := s.clock.Now()

	click.Converted = true
	click.ConvertedAt = &now
	click.Payout = &payout
	click.Revenue = &revenue
	click.Status = clickdomain.StatusConverted

	status := req.Status
	if status == "" {
		status = "completed"
	}
	if click.Metadata == nil {
		click.Metadata = datatypes.JSONMap{}
	}
	click.Metadata["conversion"] = map[string]any{
		"timestamp":      now.Unix(),
		"transaction_id": req.TransactionID,
		"amount":         payout,
		"revenue":        revenue,
		"status":         status,
		"ip":             req.SourceIP,
	}

	if err := s.repo.Update(ctx, click); err != nil {
		return nil, err
	}

	s.metrics.Conversion("success")
	s.log.Info("conversion recorded",
		zap.String("click_id", click.ClickID),
		zap.Int64("offer_id", click.OfferID),
		zap.Float64("payout", payout),
		zap.Float64("revenue", revenue),
	)

	return &clickdomain.ConvertResult{
		ClickID:     click.ClickID,
		OfferID:     click.OfferID,
		RefID:       click.RefID,
		Payout:      payout,
		Revenue:     revenue,
		ConvertedAt: click.ConvertedAt,
	}, nil
}

// findClick resolves a public click identifier, preferring the cache mapping
// to the row key.
func (s *Service) findClick(ctx context.Context, clickID string) (*clickdomain.Click, error) {
	if raw, ok := s.cache.Get(ctx, clickCachePrefix+clickID); ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			click, err := s.repo.FindByID(ctx, id)
			if err == nil {
				return click, nil
			}
			if !errors.Is(err, clickdomain.ErrClickNotFound) {
				return nil, err
			}
		}
	}
	return s.repo.FindByClickID(ctx, clickID)
}

func firstAmount(values ...*float64) float64 {
	for _, value := range values {
		if value != nil {
			return *value
		}
	}
	return 0
}
