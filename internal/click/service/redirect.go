package service

import (
	"fmt"
	"net/url"
	"strings"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	"github.com/afftrack/clickpipe/internal/offer"
)

// redirectURL builds the landing URL: the offer's device-matched template
// with placeholders expanded, then the tracker parameter and the replayed
// request query appended.
func (s *Service) redirectURL(off *offer.Offer, click *clickdomain.Click, req clickdomain.TrackRequest) string {
	base := off.URLFor(click.DeviceType)
	if base == "" {
		return ""
	}
	base = expandPlaceholders(base, click, req.Ref)

	params := url.Values{}
	params.Set(s.cfg.TrackerParam, click.ClickID)
	for key, values := range req.PassThrough {
		for _, value := range values {
			if value != "" {
				params.Add(key, value)
			}
		}
	}

	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + params.Encode()
}

func expandPlaceholders(base string, click *clickdomain.Click, ref int64) string {
	pairs := []string{
		"{click_id}", click.ClickID,
		"{offer_id}", fmt.Sprintf("%d", click.OfferID),
		"{ref}", fmt.Sprintf("%d", ref),
		"{ip}", click.RealIP,
		"{country}", click.Country,
		"{city}", click.City,
		"{device}", click.DeviceType,
		"{os}", click.Platform,
		"{browser}", click.Browser,
		"{utm_source}", click.UTMSource,
		"{utm_medium}", click.UTMMedium,
		"{utm_campaign}", click.UTMCampaign,
	}
	for position := 1; position <= 10; position++ {
		pairs = append(pairs, fmt.Sprintf("{sub_id%d}", position), click.SubID(position))
	}
	return strings.NewReplacer(pairs...).Replace(base)
}
