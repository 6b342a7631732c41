package geo

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/afftrack/clickpipe/internal/cache"
	"github.com/afftrack/clickpipe/internal/config"
	"github.com/afftrack/clickpipe/internal/observability/metrics"
)

type resolverParams struct {
	fx.In

	Cfg     config.Config
	Cache   cache.Cache
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func provideResolver(p resolverParams) *Resolver {
	r := NewResolver(p.Cfg.GeoAPIBaseURL, p.Cache, p.Log)
	r.fallbackURL = p.Cfg.GeoFallbackURL
	r.metrics = p.Metrics
	return r
}

var Module = fx.Module("geo",
	fx.Provide(provideResolver),
)
