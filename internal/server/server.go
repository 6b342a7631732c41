package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	"github.com/afftrack/clickpipe/internal/clock"
	"github.com/afftrack/clickpipe/internal/config"
	obslogger "github.com/afftrack/clickpipe/internal/observability/logger"
	"github.com/afftrack/clickpipe/internal/offer"
	"github.com/afftrack/clickpipe/internal/stats"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware(cfg.IsProduction()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	clock     clock.Clock
	clicksvc  clickdomain.Service
	clickrepo clickdomain.Repository
	statssvc  *stats.Service
	offers    offer.Repository
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	Clock     clock.Clock
	ClickSvc  clickdomain.Service
	ClickRepo clickdomain.Repository
	StatsSvc  *stats.Service
	Offers    offer.Repository
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		clock:     p.Clock,
		clicksvc:  p.ClickSvc,
		clickrepo: p.ClickRepo,
		statssvc:  p.StatsSvc,
		offers:    p.Offers,
	}
}

func registerRoutes(s *Server) {
	s.engine.GET("/track-offer", s.TrackOffer)
	s.engine.POST("/conversion", s.Conversion)
	s.engine.GET("/get-meta-data", s.GetMetaData)
	s.engine.GET("/clicks", s.ListClicks)
	s.engine.GET("/clicks/:click_id", s.GetClick)
	s.engine.GET("/offers/:offer_id/stats", s.OfferStats)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
