// Package metrics 提供 Prometheus 指标，包含 HTTP、gRPC 与购物车业务指标
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/storefront/pkg/logger"
)

const namespace = "storefront"

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// gRPC 请求计数
	GRPCRequestsTotal *prometheus.CounterVec
	// gRPC 请求耗时
	GRPCRequestDuration *prometheus.HistogramVec

	// 购物车操作计数（按操作与是否生效）
	CartOperationsTotal *prometheus.CounterVec
	// 因数量上限被截断的件数
	CartClampedUnitsTotal *prometheus.CounterVec
	// 快照持久化结果
	CartPersistTotal *prometheus.CounterVec
	// 快照持久化耗时
	CartPersistDuration prometheus.Histogram
	// 活跃会话数
	CartSessionsActive prometheus.Gauge
	// 事件发布失败次数
	CartPublishFailuresTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC requests",
		}, []string{"method", "code"}),
		GRPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		CartOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cart_operations_total",
			Help:      "Total cart mutations by operation and whether the snapshot changed",
		}, []string{"operation", "changed"}),
		CartClampedUnitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cart_clamped_units_total",
			Help:      "Units dropped because of the per-product quantity cap",
		}, []string{"operation"}),
		CartPersistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cart_persist_total",
			Help:      "Snapshot mirror writes by result",
		}, []string{"result"}),
		CartPersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cart_persist_duration_seconds",
			Help:      "Snapshot mirror write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		CartSessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cart_sessions_active",
			Help:      "Number of cart sessions held in memory",
		}),
		CartPublishFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cart_publish_failures_total",
			Help:      "Cart events that failed to publish",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	metrics := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.GRPCRequestDuration,
		m.CartOperationsTotal,
		m.CartClampedUnitsTotal,
		m.CartPersistTotal,
		m.CartPersistDuration,
		m.CartSessionsActive,
		m.CartPublishFailuresTotal,
	}

	for _, metric := range metrics {
		if err := m.registry.Register(metric); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartHTTPServer 启动 Prometheus HTTP 服务器，ctx 取消时关闭
func (m *Metrics) StartHTTPServer(ctx context.Context, addr, path string) error {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Starting Prometheus HTTP server", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGRPCRequest 记录 gRPC 请求
func (m *Metrics) RecordGRPCRequest(method, code string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordCartOperation 记录购物车变更
func (m *Metrics) RecordCartOperation(operation string, changed bool, clamped int) {
	m.CartOperationsTotal.WithLabelValues(operation, strconv.FormatBool(changed)).Inc()
	if clamped > 0 {
		m.CartClampedUnitsTotal.WithLabelValues(operation).Add(float64(clamped))
	}
}

// RecordPersist 记录一次快照写入
func (m *Metrics) RecordPersist(err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.CartPersistTotal.WithLabelValues(result).Inc()
	m.CartPersistDuration.Observe(duration.Seconds())
}

// RecordPublishFailure 记录事件发布失败
func (m *Metrics) RecordPublishFailure() {
	m.CartPublishFailuresTotal.Inc()
}

// SetActiveSessions 更新活跃会话数
func (m *Metrics) SetActiveSessions(n int) {
	m.CartSessionsActive.Set(float64(n))
}
