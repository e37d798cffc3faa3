package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/ifrs2tools/equityval/internal/valuation/application"
	"github.com/ifrs2tools/equityval/internal/valuation/domain"
	"github.com/ifrs2tools/equityval/internal/valuation/infrastructure/persistence/mysql"
	valuation_http "github.com/ifrs2tools/equityval/internal/valuation/interfaces/http"
	"github.com/ifrs2tools/equityval/pkg/cache"
	"github.com/ifrs2tools/equityval/pkg/config"
	"github.com/ifrs2tools/equityval/pkg/db"
	"github.com/ifrs2tools/equityval/pkg/logger"
	"github.com/ifrs2tools/equityval/pkg/metrics"
	"github.com/ifrs2tools/equityval/pkg/middleware"
	"github.com/ifrs2tools/equityval/pkg/mq"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/valuation/config.toml", "path to config file")
	flag.Parse()

	ctx := context.Background()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.ServiceName, logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}

	// 3. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "connect db failed", "error", err)
	}
	defer database.Close()

	if err := mysql.AutoMigrate(database.DB); err != nil {
		logger.Fatal(ctx, "migrate db failed", "error", err)
	}

	// 4. Cache（可选，连接失败时降级为无缓存运行）
	var resultCache application.ResultCache
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Warn(ctx, "redis unavailable, running without result cache", "error", err)
	} else {
		resultCache = redisCache
		defer redisCache.Close()
	}

	// 5. Kafka producer（可选，未配置 broker 时不发布事件）
	var publisher application.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Warn(ctx, "kafka unavailable, running without event publishing", "error", err)
		} else {
			publisher = producer
			defer producer.Close()
		}
	}

	// 6. Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("valuation")
		if err := m.Register(); err != nil {
			logger.Fatal(ctx, "register metrics failed", "error", err)
		}
	}

	// 7. Application
	repo := mysql.NewValuationRepo(database)
	appService := application.NewValuationService(
		domain.Aggregator{},
		repo,
		resultCache,
		publisher,
		m,
		logger.Get(),
		application.Config{
			RateConvention:        cfg.Valuation.RateConvention,
			Currency:              cfg.Valuation.Currency,
			CacheTTL:              time.Duration(cfg.Valuation.CacheTTL) * time.Second,
			ValuationTopic:        cfg.Kafka.ValuationTopic,
			MaxConcurrentTranches: cfg.Valuation.MaxConcurrentTranches,
		},
	)

	// 8. Interfaces
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.GinRecoveryMiddleware())
	r.Use(middleware.GinLoggingMiddleware())
	r.Use(middleware.GinCORSMiddleware())
	r.Use(middleware.GinRateLimitMiddleware(middleware.NewRateLimiter(float64(cfg.HTTP.MaxConnections), float64(cfg.HTTP.MaxConnections))))

	valuation_http.NewValuationHandler(appService).RegisterRoutes(r.Group(""))

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
	}
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}
	pp := r.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 9. Start
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 10. Graceful Shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(gctx, "shutting down server...")
		case <-gctx.Done():
			logger.Info(gctx, "context cancelled, shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "server exited with error", "error", err)
	}
}
