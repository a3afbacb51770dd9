package application

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// SessionRegistry 按会话 ID 管理 CartStore，首次访问时从仓储恢复
type SessionRegistry struct {
	repo     domain.CartRepository
	mirror   *Mirror
	recorder MetricsRecorder
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	loads    singleflight.Group
}

type session struct {
	store    *CartStore
	lastSeen time.Time
}

// NewSessionRegistry 创建会话注册表
func NewSessionRegistry(repo domain.CartRepository, mirror *Mirror, recorder MetricsRecorder) *SessionRegistry {
	return &SessionRegistry{
		repo:     repo,
		mirror:   mirror,
		recorder: recorderOrNop(recorder),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Get 获取会话的 CartStore，加载失败时不缓存
func (r *SessionRegistry) Get(ctx context.Context, sessionID string) (*CartStore, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		s.lastSeen = r.now()
		r.mu.Unlock()
		return s.store, nil
	}
	r.mu.Unlock()

	v, err, _ := r.loads.Do(sessionID, func() (any, error) {
		store, err := RestoreCartStore(ctx, sessionID, r.repo, r.mirror)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if s, ok := r.sessions[sessionID]; ok {
			return s.store, nil
		}
		r.sessions[sessionID] = &session{store: store, lastSeen: r.now()}
		r.recorder.SetActiveSessions(len(r.sessions))
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CartStore), nil
}

// Len 内存中的会话数
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep 写出待写快照后淘汰超过 idle 未访问的会话，返回淘汰数量
func (r *SessionRegistry) Sweep(ctx context.Context, idle time.Duration) int {
	if r.mirror != nil {
		r.mirror.Flush(context.WithoutCancel(ctx))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	evicted := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	r.recorder.SetActiveSessions(len(r.sessions))
	if evicted > 0 {
		logger.Debug(ctx, "Evicted idle cart sessions", "evicted", evicted, "active", len(r.sessions))
	}
	return evicted
}
