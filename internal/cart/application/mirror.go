package application

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// DefaultWriteTimeout 单次快照写入的超时
const DefaultWriteTimeout = 3 * time.Second

// Mirror 把购物车快照异步写入仓储
// 每个会话只保留最新一份待写快照，旧的会被覆盖；写入失败只记录日志，不影响调用方
type Mirror struct {
	repo         domain.CartRepository
	recorder     MetricsRecorder
	writeTimeout time.Duration

	mu       sync.Mutex
	pending  map[string]domain.CartState
	inflight map[string]domain.CartState
	closed   bool

	// 保证同一时刻只有一个写入批次
	flushMu sync.Mutex

	notify    chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewMirror 创建并启动镜像写入器
func NewMirror(repo domain.CartRepository, recorder MetricsRecorder, writeTimeout time.Duration) *Mirror {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	m := &Mirror{
		repo:         repo,
		recorder:     recorderOrNop(recorder),
		writeTimeout: writeTimeout,
		pending:      make(map[string]domain.CartState),
		notify:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go m.run()
	return m
}

// Enqueue 登记会话的最新快照
func (m *Mirror) Enqueue(sessionID string, state domain.CartState) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.flushMu.Lock()
		defer m.flushMu.Unlock()
		m.write(context.Background(), sessionID, state)
		return
	}
	m.pending[sessionID] = state
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Pending 返回尚未落盘的最新快照
func (m *Mirror) Pending(sessionID string) (domain.CartState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.pending[sessionID]; ok {
		return state.Clone(), true
	}
	if state, ok := m.inflight[sessionID]; ok {
		return state.Clone(), true
	}
	return domain.CartState{}, false
}

// Flush 同步写出所有待写快照
func (m *Mirror) Flush(ctx context.Context) {
	m.drain(ctx)
}

// Close 停止后台写入，退出前写出剩余快照
func (m *Mirror) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		<-m.stopped
	})
}

func (m *Mirror) run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.notify:
			m.drain(context.Background())
		case <-m.done:
			m.mu.Lock()
			m.closed = true
			m.mu.Unlock()
			m.drain(context.Background())
			return
		}
	}
}

func (m *Mirror) drain(ctx context.Context) {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.inflight = nil
			m.mu.Unlock()
			return
		}
		batch := m.pending
		m.pending = make(map[string]domain.CartState)
		m.inflight = batch
		m.mu.Unlock()

		for sessionID, state := range batch {
			m.write(ctx, sessionID, state)
		}
	}
}

// write 空购物车删除记录，其余覆盖写入
// 快照已移出 pending，写入只受 writeTimeout 约束，不随调用方 ctx 取消
func (m *Mirror) write(ctx context.Context, sessionID string, state domain.CartState) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
	defer cancel()

	start := time.Now()
	var err error
	if state.IsEmpty() {
		err = m.repo.Delete(ctx, sessionID)
	} else {
		err = m.repo.Save(ctx, sessionID, state)
	}
	m.recorder.RecordPersist(err, time.Since(start))
	if err != nil {
		logger.Error(ctx, "Failed to mirror cart snapshot", "session_id", sessionID, "items", len(state.Items), "error", err)
	}
}
