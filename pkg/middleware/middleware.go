// Package middleware 提供 Gin 与 gRPC 的通用中间件（日志、panic recover、跨域、指标、限流）
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/response"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDKey gin context 中 request ID 的 key
const RequestIDKey = "request_id"

// RequestIDHeader 透传 request ID 的请求头
const RequestIDHeader = "X-Request-ID"

// HTTPMetrics HTTP 指标记录接口
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
}

// GRPCMetrics gRPC 指标记录接口
type GRPCMetrics interface {
	RecordGRPCRequest(method, code string, duration time.Duration)
}

// GinLoggingMiddleware Gin 日志中间件
func GinLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		ctx := c.Request.Context()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		attrs := []any{
			"request_id", requestID,
			"method", method,
			"path", path,
			"client_ip", c.ClientIP(),
			"status_code", c.Writer.Status(),
			"response_size", c.Writer.Size(),
			"duration", time.Since(start),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			attrs = append(attrs, "trace_id", sc.TraceID().String())
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error(ctx, "HTTP request completed", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn(ctx, "HTTP request completed", attrs...)
		default:
			logger.Info(ctx, "HTTP request completed", attrs...)
		}
	}
}

// GinRecoveryMiddleware Gin panic 恢复中间件
func GinRecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString(RequestIDKey)
				logger.Error(c.Request.Context(), "HTTP request panicked",
					"request_id", requestID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", fmt.Sprint(err),
				)
				response.ErrorWithStatus(c, http.StatusInternalServerError, "Internal server error", requestID)
			}
		}()
		c.Next()
	}
}

// GinCORSMiddleware Gin CORS 中间件，allowOrigins 为空时允许所有来源
func GinCORSMiddleware(allowOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[o] = struct{}{}
	}
	allowHeaders := strings.Join([]string{
		"Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
		"Cache-Control", "X-Requested-With", RequestIDHeader, "X-Session-ID",
	}, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		switch {
		case len(allowed) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
		}
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// GinMetricsMiddleware 记录 HTTP 请求数与耗时，path 使用路由模板以控制基数
func GinMetricsMiddleware(m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
