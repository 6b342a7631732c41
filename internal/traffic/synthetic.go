package traffic

import (
	"context"
	"crypto/md5"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gosimple/slug"

	"github.com/afftrack/clickpipe/internal/cache"
	"github.com/afftrack/clickpipe/internal/clock"
)

// Params is one synthesized UTM parameter set.
type Params struct {
	Source   string `json:"utm_source"`
	Medium   string `json:"utm_medium"`
	Campaign string `json:"utm_campaign"`
	Term     string `json:"utm_term"`
	Content  string `json:"utm_content"`
}

type sourceOptions struct {
	medium   []string
	campaign []string
	content  []string
	term     []string
}

// Per-source option pools. Unknown slugs fall back to the google pool.
var utmOptions = map[string]sourceOptions{
	"facebook": {
		medium:   []string{"cpc", "social", "paid", "display"},
		campaign: []string{"conversion", "awareness", "engagement", "retargeting"},
		content:  []string{"image_ad", "carousel_ad", "video_ad", "story_ad"},
		term:     []string{"interest_targeting", "lookalike", "custom_audience"},
	},
	"instagram": {
		medium:   []string{"social", "cpc", "story", "influencer"},
		campaign: []string{"brand_awareness", "engagement", "conversion", "app_installs"},
		content:  []string{"feed_post", "story", "reel", "carousel"},
		term:     []string{"hashtag", "interest", "follower_targeting"},
	},
	"tiktok": {
		medium:   []string{"video", "cpc", "social", "influencer"},
		campaign: []string{"brand_takeover", "in_feed", "hashtag_challenge", "conversion"},
		content:  []string{"video_ad", "spark_ad", "branded_effect"},
		term:     []string{"interest", "behavior", "age_targeting"},
	},
	"snapchat": {
		medium:   []string{"snap_ad", "story_ad", "filter", "lens"},
		campaign: []string{"awareness", "consideration", "conversion"},
		content:  []string{"single_image", "video", "collection_ad", "ar_lens"},
		term:     []string{"age", "interest", "location"},
	},
	"whatsapp": {
		medium:   []string{"message", "status", "broadcast", "group"},
		campaign: []string{"business_message", "promotion", "announcement", "customer_service"},
		content:  []string{"text", "image", "video", "document"},
		term:     []string{"direct", "broadcast", "group_message"},
	},
	"google": {
		medium:   []string{"cpc", "search", "display", "remarketing"},
		campaign: []string{"brand", "generic", "competitor", "display_network"},
		content:  []string{"text_ad", "responsive_ad", "banner", "video"},
		term:     []string{"exact", "phrase", "broad", "keyword"},
	},
	"youtube": {
		medium:   []string{"video", "pre_roll", "mid_roll", "discovery"},
		campaign: []string{"brand_awareness", "consideration", "action", "trueview"},
		content:  []string{"skippable", "non_skippable", "bumper", "masthead"},
		term:     []string{"interest", "topic", "channel", "keyword"},
	},
	"twitter": {
		medium:   []string{"promoted_tweet", "promoted_account", "promoted_trend"},
		campaign: []string{"followers", "engagement", "awareness", "website_clicks"},
		content:  []string{"text", "image", "video", "carousel"},
		term:     []string{"keyword", "interest", "follower", "behavior"},
	},
	"pinterest": {
		medium:   []string{"promoted_pin", "shopping", "video", "carousel"},
		campaign: []string{"awareness", "consideration", "conversion", "catalog"},
		content:  []string{"standard_pin", "video_pin", "carousel", "collection"},
		term:     []string{"interest", "keyword", "audience", "placement"},
	},
	"linkedin": {
		medium:   []string{"sponsored_content", "message_ad", "text_ad", "dynamic"},
		campaign: []string{"brand_awareness", "website_visits", "engagement", "lead_generation"},
		content:  []string{"single_image", "carousel", "video", "document"},
		term:     []string{"job_title", "company", "skills", "industry"},
	},
}

const (
	debouncePrefix = "utm:params:"
	debounceWindow = 5 * time.Minute
)

// Synthesizer builds randomized but plausible UTM parameter sets for a
// catalog source. A short per-IP debounce makes back-to-back sets from the
// same IP distinguishable.
type Synthesizer struct {
	cache cache.Cache
	clock clock.Clock

	// mu serializes rng, which is shared across request goroutines.
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSynthesizer(store cache.Cache, clk clock.Clock) *Synthesizer {
	return &Synthesizer{
		cache: store,
		clock: clk,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSynthesizerWithSeed fixes the random stream for tests.
func NewSynthesizerWithSeed(store cache.Cache, clk clock.Clock, seed int64) *Synthesizer {
	s := NewSynthesizer(store, clk)
	s.rng = rand.New(rand.NewSource(seed))
	return s
}

// Generate produces a parameter set for sourceSlug. The slug is normalized
// before lookup so catalog rows with display-cased names still resolve.
func (s *Synthesizer) Generate(ctx context.Context, sourceSlug, ip string) Params {
	normalized := slug.Make(sourceSlug)
	options, ok := utmOptions[normalized]
	if !ok {
		options = utmOptions["google"]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seed := fmt.Sprintf("%d%s%d", s.clock.Now().UnixNano(), ip, 1000+s.rng.Intn(9000))
	campaignSuffix := 100 + s.rng.Intn(900)
	contentSuffix := fmt.Sprintf("%x", md5.Sum([]byte(seed)))[:5]

	params := Params{
		Source:   normalized,
		Medium:   s.pick(options.medium),
		Campaign: fmt.Sprintf("%s_%d", s.pick(options.campaign), campaignSuffix),
		Content:  fmt.Sprintf("%s_%s", s.pick(options.content), contentSuffix),
		Term:     s.pick(options.term),
	}

	key := debouncePrefix + ip
	if _, seen := s.cache.Get(ctx, key); seen {
		params.Content = fmt.Sprintf("%s_v%d", params.Content, 2+s.rng.Intn(8))
	}
	s.cache.Put(ctx, key, "1", debounceWindow)

	return params
}

func (s *Synthesizer) pick(options []string) string {
	return options[s.rng.Intn(len(options))]
}
