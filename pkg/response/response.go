// Package response 统一的 HTTP JSON 响应格式
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 响应体
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// StatusError 携带 HTTP 状态码的错误
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus 为错误附加 HTTP 状态码
func WithStatus(status int, err error) error {
	return &StatusError{Status: status, Err: err}
}

// Success 200 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// ErrorWithStatus 指定状态码的错误响应
func ErrorWithStatus(c *gin.Context, status int, message, detail string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: message, Detail: detail})
}

// Error 根据错误推断状态码，未知错误按 500 处理
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var se *StatusError
	if errors.As(err, &se) {
		status = se.Status
	}
	ErrorWithStatus(c, status, err.Error(), "")
}
