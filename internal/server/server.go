package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/alankar/internal/analytics"
	analyticsdomain "github.com/smallbiznis/alankar/internal/analytics/domain"
	"github.com/smallbiznis/alankar/internal/bill"
	billdomain "github.com/smallbiznis/alankar/internal/bill/domain"
	"github.com/smallbiznis/alankar/internal/config"
	"github.com/smallbiznis/alankar/internal/customer"
	customerdomain "github.com/smallbiznis/alankar/internal/customer/domain"
	"github.com/smallbiznis/alankar/internal/observability"
	obsmiddleware "github.com/smallbiznis/alankar/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/alankar/internal/observability/metrics"
	obstracing "github.com/smallbiznis/alankar/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	customer.Module,
	bill.Module,
	analytics.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS(cfg.CORSAllowedOrigins))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics, cfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
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

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	customerSvc  customerdomain.Service
	billSvc      billdomain.Service
	analyticsSvc analyticsdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	CustomerSvc  customerdomain.Service
	BillSvc      billdomain.Service
	AnalyticsSvc analyticsdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http"),
		customerSvc:  p.CustomerSvc,
		billSvc:      p.BillSvc,
		analyticsSvc: p.AnalyticsSvc,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.Home)

	// -------- Bills --------
	bills := s.engine.Group("/bills")
	{
		bills.GET("", s.ListBills)
		bills.POST("", s.CreateBill)
		bills.POST("/search", s.SearchBills)
		bills.GET("/summary", s.GetSummary)
		bills.GET("/:id", s.GetBillByID)
		bills.PATCH("/:id", s.UpdateBill)
		bills.DELETE("/:id", s.DeleteBill)
	}
	s.engine.GET("/summary", s.GetSummary)

	// -------- Customers --------
	customers := s.engine.Group("/customers")
	{
		customers.GET("", s.ListCustomers)
		customers.GET("/search", s.SearchCustomers)
		customers.POST("", s.CreateCustomer)
		customers.GET("/:id", s.GetCustomerByID)
		customers.PATCH("/:id", s.UpdateCustomer)
		customers.DELETE("/:id", s.DeleteCustomer)
	}
}

func (s *Server) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "alankar billing api"})
}
