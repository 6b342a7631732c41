package traffic

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/afftrack/clickpipe/internal/cache"
	"github.com/afftrack/clickpipe/internal/clock"
)

func newSynthesizer(t *testing.T) *Synthesizer {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return NewSynthesizerWithSeed(cache.NewMemory(), clk, 42)
}

func TestGenerateFromKnownSource(t *testing.T) {
	s := newSynthesizer(t)
	params := s.Generate(context.Background(), "facebook", "203.0.113.9")

	assert.Equal(t, "facebook", params.Source)
	assert.Contains(t, utmOptions["facebook"].medium, params.Medium)
	assert.Contains(t, utmOptions["facebook"].term, params.Term)

	// Pool entries can themselves contain underscores; the suffix sits after
	// the last one.
	idx := strings.LastIndex(params.Campaign, "_")
	assert.Contains(t, utmOptions["facebook"].campaign, params.Campaign[:idx])
	assert.Len(t, params.Campaign[idx+1:], 3)

	idx = strings.LastIndex(params.Content, "_")
	assert.Contains(t, utmOptions["facebook"].content, params.Content[:idx])
	assert.Len(t, params.Content[idx+1:], 5)
}

func TestGenerateUnknownSourceFallsBack(t *testing.T) {
	s := newSynthesizer(t)
	params := s.Generate(context.Background(), "carrier-pigeon", "203.0.113.9")

	assert.Equal(t, "carrier-pigeon", params.Source)
	assert.Contains(t, utmOptions["google"].medium, params.Medium)
}

func TestGenerateNormalizesSlug(t *testing.T) {
	s := newSynthesizer(t)
	params := s.Generate(context.Background(), "Facebook", "203.0.113.9")

	assert.Equal(t, "facebook", params.Source)
	assert.Contains(t, utmOptions["facebook"].medium, params.Medium)
}

func TestGenerateDebouncesRepeatIP(t *testing.T) {
	s := newSynthesizer(t)
	ctx := context.Background()

	first := s.Generate(ctx, "google", "203.0.113.9")
	second := s.Generate(ctx, "google", "203.0.113.9")

	assert.NotContains(t, first.Content, "_v")
	vIdx := strings.LastIndex(second.Content, "_v")
	assert.Positive(t, vIdx, "repeat IP inside the window gets a variant marker")
	variant := second.Content[vIdx+2:]
	assert.GreaterOrEqual(t, variant, "2")
	assert.LessOrEqual(t, variant, "9")

	// A different IP is unaffected.
	other := s.Generate(ctx, "google", "198.51.100.7")
	assert.NotContains(t, other.Content, "_v")
}

func TestGenerateConcurrent(t *testing.T) {
	s := newSynthesizer(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			ip := fmt.Sprintf("203.0.113.%d", worker)
			for i := 0; i < 200; i++ {
				params := s.Generate(ctx, "facebook", ip)
				if params.Source != "facebook" || params.Medium == "" {
					t.Errorf("bad params %+v", params)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
}
