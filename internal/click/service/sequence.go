package service

import (
	"context"
	"fmt"
	"time"

	"github.com/afftrack/clickpipe/internal/observability/metrics"
)

const sequencePrefix = "clicks:seq:"

// newClickID mints the public click identifier: two-letter country code,
// ddmmyyyy, then a zero-padded daily sequence number. The sequence comes
// from an atomic counter keyed by day; the database count is the fallback
// when the counter backend cannot serve.
func (s *Service) newClickID(ctx context.Context, countryCode string, now time.Time) (string, error) {
	date := now.Format("02012006")

	sequence, ok := s.cache.Incr(ctx, sequencePrefix+date, 48*time.Hour)
	if !ok {
		s.metrics.UpstreamFallback(metrics.FallbackSourceSequence)
		count, err := s.repo.CountSince(ctx, startOfDay(now))
		if err != nil {
			return "", err
		}
		sequence = count + 1
	}

	return fmt.Sprintf("%s%s%04d", countryCode, date, sequence), nil
}
