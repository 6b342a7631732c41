package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/afftrack/clickpipe/internal/config"
)

func Provide(cfg config.Config) *Metrics {
	return New(prometheus.DefaultRegisterer, Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}

var Module = fx.Module("metrics",
	fx.Provide(Provide),
)
