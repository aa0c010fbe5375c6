package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	auditdomain "github.com/smallbiznis/dormitory/internal/audit/domain"
	"github.com/smallbiznis/dormitory/internal/authorization"
	"github.com/smallbiznis/dormitory/internal/config"
	fridgedomain "github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/fridge/labelsheet"
	"github.com/smallbiznis/dormitory/internal/observability"
	obsmiddleware "github.com/smallbiznis/dormitory/internal/observability/logger"
	obstracing "github.com/smallbiznis/dormitory/internal/observability/tracing"
	"github.com/smallbiznis/dormitory/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsCfg      observability.Config
	HTTPMetrics *telemetry.Metrics  `optional:"true"`
	Gatherer    prometheus.Gatherer `optional:"true"`
}

func NewEngine(obsCfg observability.Config, httpMetrics *telemetry.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(telemetry.Handler(gatherer)))
	return r
}

func registerGin(p EngineParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.HTTPMetrics, p.Gatherer)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	redis       *redis.Client
	log         *zap.Logger
	allocations fridgedomain.AllocationService
	topology    fridgedomain.TopologyService
	labels      labelsheet.Renderer
	auditSvc    auditdomain.Service
	authzSvc    authorization.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Redis       *redis.Client `optional:"true"`
	Log         *zap.Logger
	Allocations fridgedomain.AllocationService
	Topology    fridgedomain.TopologyService
	Labels      labelsheet.Renderer
	AuditSvc    auditdomain.Service
	AuthzSvc    authorization.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		redis:       p.Redis,
		log:         p.Log.Named("http.server"),
		allocations: p.Allocations,
		topology:    p.Topology,
		labels:      p.Labels,
		auditSvc:    p.AuditSvc,
		authzSvc:    p.AuthzSvc,
	}

	svc.engine.GET("/health", svc.Health)
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(ActorContext())

	// -------- Allocation --------
	floors := api.Group("/fridge/floors/:floor")
	{
		floors.GET("/allocation/preview",
			s.authorize(authorization.ObjectFridgeAllocation, authorization.ActionAllocationPreview),
			s.PreviewAllocation,
		)
		floors.POST("/allocation/apply",
			s.authorize(authorization.ObjectFridgeAllocation, authorization.ActionAllocationApply),
			s.ApplyAllocation,
		)
		floors.GET("/units",
			s.authorize(authorization.ObjectFridgeTopology, authorization.ActionTopologyView),
			s.ListUnits,
		)
	}

	// -------- Topology --------
	manage := s.authorize(authorization.ObjectFridgeTopology, authorization.ActionTopologyManage)
	api.POST("/fridge/units", manage, s.CreateUnit)
	api.POST("/fridge/units/:id/reorder", manage, s.ReorderCompartments)
	api.POST("/fridge/units/:id/relabel", manage, s.RelabelUnit)
	api.PATCH("/fridge/compartments/:id", manage, s.UpdateCompartment)
	api.GET("/fridge/compartments/:id/labels.pdf",
		s.authorize(authorization.ObjectFridgeTopology, authorization.ActionTopologyView),
		s.CompartmentLabels,
	)
	api.POST("/rooms", manage, s.CreateRoom)

	// -------- Audit --------
	api.GET("/audit-logs",
		s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView),
		s.ListAuditLogs,
	)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// Health reports whether the database and, when configured, Redis answer.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		checks["database"] = "unavailable"
		healthy = false
	}

	if s.redis != nil {
		checks["redis"] = "ok"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
