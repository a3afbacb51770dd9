package application

import (
	"errors"
	"time"
)

// ErrSessionRequired 请求缺少会话 ID
var ErrSessionRequired = errors.New("session id is required")

// MetricsRecorder 应用层使用的指标接口
type MetricsRecorder interface {
	RecordCartOperation(operation string, changed bool, clamped int)
	RecordPersist(err error, duration time.Duration)
	RecordPublishFailure()
	SetActiveSessions(n int)
}

// nopRecorder 指标的空实现
type nopRecorder struct{}

func (nopRecorder) RecordCartOperation(string, bool, int) {}
func (nopRecorder) RecordPersist(error, time.Duration) {}
func (nopRecorder) RecordPublishFailure() {}
func (nopRecorder) SetActiveSessions(int) {}

func recorderOrNop(r MetricsRecorder) MetricsRecorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
