// CartService 主程序
// 功能：提供按会话隔离的购物车，快照异步镜像到 Redis 或 MySQL
// 架构：基于 DDD + Gin + gRPC 健康检查 + Kafka 事件
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/messaging"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/memory"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/mysql"
	cartredis "github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/redis"
	"github.com/wyfcoding/storefront/internal/cart/interfaces/consumer"
	httphandler "github.com/wyfcoding/storefront/internal/cart/interfaces/http"
	"github.com/wyfcoding/storefront/pkg/cache"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
	"github.com/wyfcoding/storefront/pkg/middleware"
	"github.com/wyfcoding/storefront/pkg/mq"
	"github.com/wyfcoding/storefront/pkg/ratelimit"
	"github.com/wyfcoding/storefront/pkg/trace"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	configPath := flag.String("config", config.GetEnv("CONFIG_PATH", "configs/cart/config.toml"), "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting CartService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
		"store", cfg.Cart.Store,
	)

	// 3. 初始化追踪
	if cfg.Tracing.Enabled {
		shutdown, err := trace.Init(ctx, trace.Config{
			ServiceName:       cfg.ServiceName,
			ServiceVersion:    cfg.Version,
			Environment:       cfg.Environment,
			CollectorEndpoint: cfg.Tracing.CollectorEndpoint,
			SamplingRate:      cfg.Tracing.SamplingRate,
		})
		if err != nil {
			logger.Error(ctx, "Failed to initialize tracer", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Error(context.Background(), "Failed to shutdown tracer", "error", err)
				}
			}()
			logger.Info(ctx, "Tracer initialized", "endpoint", cfg.Tracing.CollectorEndpoint)
		}
	}

	// 4. 初始化 Redis（快照存储或分布式限流需要）
	var redisCache *cache.RedisCache
	if cfg.Cart.Store == config.StoreRedis || (cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis") {
		redisCache, err = cache.New(ctx, cache.Config{
			Host:            cfg.Redis.Host,
			Port:            cfg.Redis.Port,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			MaxPoolSize:     cfg.Redis.MaxPoolSize,
			ConnTimeout:     cfg.Redis.ConnTimeout,
			ReadTimeout:     cfg.Redis.ReadTimeout,
			WriteTimeout:    cfg.Redis.WriteTimeout,
			ConnectAttempts: 5,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
		}
		defer redisCache.Close()
	}

	// 5. 初始化快照仓储
	var repo domain.CartRepository
	switch cfg.Cart.Store {
	case config.StoreRedis:
		repo = cartredis.NewCartRedisRepository(redisCache.GetClient(), cfg.Cart.KeyPrefix, cfg.Cart.TTL)
	case config.StoreMySQL:
		database, err := db.Init(ctx, db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize database", "error", err)
		}
		defer database.Close()
		if err := mysql.AutoMigrate(database.DB); err != nil {
			logger.Fatal(ctx, "Failed to migrate cart schema", "error", err)
		}
		repo = mysql.NewCartRepository(database.DB)
	default:
		repo = memory.NewCartRepository()
	}

	// 6. 初始化事件发布
	var (
		producer  *mq.KafkaProducer
		publisher domain.EventPublisher = messaging.NewLogEventPublisher()
	)
	kafkaCfg := mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     cfg.Kafka.MaxRetries,
		RetryBackoff:   cfg.Kafka.RetryBackoff,
	}
	if cfg.Kafka.Enabled {
		producer = mq.NewProducer(kafkaCfg)
		defer producer.Close()
		publisher = messaging.NewKafkaEventPublisher(producer)
	}

	// 7. 初始化指标
	var (
		metricsInstance *metrics.Metrics
		recorder        application.MetricsRecorder
	)
	if cfg.Metrics.Enabled {
		metricsInstance = metrics.New(cfg.ServiceName)
		if err := metricsInstance.Register(); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
		recorder = metricsInstance
	}

	// 8. 初始化应用服务
	cartApp := application.NewCartApplicationService(repo, publisher, recorder, application.Config{
		WriteTimeout: cfg.Cart.WriteTimeout,
		IdleTimeout:  cfg.Cart.IdleTimeout,
	})

	// 9. 初始化限流器
	var limiter ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter()
	if redisCache != nil && cfg.RateLimit.Backend == "redis" {
		limiter = ratelimit.NewRedisRateLimiter(redisCache.GetClient())
	}

	// 10. 创建服务器
	httpServer, err := createHTTPServer(cfg, cartApp, repo, limiter, metricsInstance)
	if err != nil {
		logger.Fatal(ctx, "Failed to create HTTP server", "error", err)
	}
	grpcServer, healthServer := createGRPCServer(cfg, metricsInstance)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "Starting HTTP server", "addr", cfg.HTTP.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		listener, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		logger.Info(gctx, "Starting gRPC server", "addr", cfg.GRPC.Addr())
		return grpcServer.Serve(listener)
	})

	if metricsInstance != nil {
		g.Go(func() error {
			return metricsInstance.StartHTTPServer(gctx, fmt.Sprintf(":%d", cfg.Metrics.Port), cfg.Metrics.Path)
		})
	}

	// 空闲会话淘汰与健康状态刷新
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Cart.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := cartApp.SweepIdle(gctx); n > 0 {
					logger.Debug(gctx, "Evicted idle cart sessions", "count", n)
				}
				healthServer.SetServingStatus("", servingStatus(gctx, repo))
			}
		}
	})

	// 结算完成后清空购物车
	if cfg.Kafka.Enabled {
		var dlq *mq.DeadLetterQueue
		if cfg.Kafka.DeadLetterTopic != "" {
			dlq = mq.NewDeadLetterQueue(producer, cfg.Kafka.DeadLetterTopic)
		}
		checkoutConsumer := mq.NewConsumer(kafkaCfg, cfg.Kafka.CheckoutTopic, dlq)
		checkoutHandler := consumer.NewCheckoutHandler(cartApp)
		g.Go(func() error {
			defer checkoutConsumer.Close()
			logger.Info(gctx, "Starting checkout consumer", "topic", cfg.Kafka.CheckoutTopic)
			return checkoutConsumer.Consume(gctx, checkoutHandler.Handle)
		})
	}

	// 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down CartService")

		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "HTTP server shutdown error", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "CartService exited with error", "error", err)
	}

	// 写出剩余快照后再关闭存储连接
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	done := logger.LogDuration(flushCtx, "Flushed pending cart snapshots", "sessions", cartApp.ActiveSessions())
	cartApp.Flush(flushCtx)
	done()
	cancel()
	cartApp.Close()

	logger.Info(context.Background(), "CartService stopped")
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, cartApp *application.CartApplicationService, repo domain.CartRepository, limiter ratelimit.RateLimiter, m *metrics.Metrics) (*http.Server, error) {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// 限流按客户端 IP 计数，只信任配置的代理转发的地址
	if err := router.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// 添加中间件
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware(cfg.HTTP.AllowOrigins))
	if m != nil {
		router.Use(middleware.GinMetricsMiddleware(m))
	}
	router.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))

	// 注册路由
	httphandler.NewCartHandler(cartApp).RegisterRoutes(&router.RouterGroup)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if !repo.Ping(c.Request.Context()) {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"service":   cfg.ServiceName,
			"store":     cfg.Cart.Store,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}, nil
}

// createGRPCServer 创建 gRPC 服务器，仅暴露健康检查与反射
func createGRPCServer(cfg *config.Config, m *metrics.Metrics) (*grpc.Server, *health.Server) {
	interceptors := []grpc.UnaryServerInterceptor{
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
	}
	if m != nil {
		interceptors = append(interceptors, middleware.GRPCMetricsInterceptor(m))
	}

	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	if cfg.GRPC.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)))
	}

	server := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return server, healthServer
}

func servingStatus(ctx context.Context, repo domain.CartRepository) healthpb.HealthCheckResponse_ServingStatus {
	if repo.Ping(ctx) {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
