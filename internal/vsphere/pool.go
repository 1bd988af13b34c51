package vsphere

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/isometry/vmname/internal/logging"
)

// ErrPoolClosed is returned by Acquire after ReleaseAll.
var ErrPoolClosed = errors.New("vCenter session pool is closed")

// releaseTimeout bounds each logout during ReleaseAll.
const releaseTimeout = 10 * time.Second

// Pool memoizes one live session per endpoint for the lifetime of a run.
//
// Concurrent first use of an endpoint shares a single dial. A failed dial is
// returned to every caller that shared it and is not remembered; the next
// Acquire dials again.
type Pool struct {
	dialer Dialer
	group  singleflight.Group

	mu       sync.Mutex
	sessions map[string]Session
	closed   bool

	// Statistics
	dials    int64
	reuses   int64
	failures int64
}

// PoolStats reports pool activity.
type PoolStats struct {
	Sessions int
	Dials    int64
	Reuses   int64
	Failures int64
}

// NewPool creates an empty pool dialing through dialer.
func NewPool(dialer Dialer) *Pool {
	return &Pool{
		dialer:   dialer,
		sessions: make(map[string]Session),
	}
}

// Acquire returns the session for endpoint, dialing it on first use.
func (p *Pool) Acquire(ctx context.Context, endpoint string) (Session, error) {
	if session, ok, err := p.cached(endpoint); ok {
		if err == nil {
			atomic.AddInt64(&p.reuses, 1)
			logging.LogPoolEvent(ctx, Subsystem, "session_reused", map[string]any{"endpoint": endpoint})
		}
		return session, err
	}

	ch := p.group.DoChan(endpoint, func() (any, error) {
		return p.dial(ctx, endpoint)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cached reports a memoized session, or ErrPoolClosed, without dialing.
func (p *Pool) cached(endpoint string) (Session, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, true, ErrPoolClosed
	}
	if session, ok := p.sessions[endpoint]; ok {
		return session, true, nil
	}
	return nil, false, nil
}

func (p *Pool) dial(ctx context.Context, endpoint string) (Session, error) {
	// A previous dial may have finished between cached and DoChan
	if session, ok, err := p.cached(endpoint); ok {
		return session, err
	}

	start := time.Now()
	atomic.AddInt64(&p.dials, 1)
	session, err := p.dialer.Dial(ctx, endpoint)
	if err != nil {
		atomic.AddInt64(&p.failures, 1)
		logging.LogPoolEvent(ctx, Subsystem, "session_failed", map[string]any{
			"endpoint":    endpoint,
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err.Error(),
		})
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		// ReleaseAll already ran and will never see this session
		_ = session.Logout(context.WithoutCancel(ctx))
		return nil, ErrPoolClosed
	}
	p.sessions[endpoint] = session
	p.mu.Unlock()

	logging.LogPoolEvent(ctx, Subsystem, "session_created", map[string]any{
		"endpoint":    endpoint,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return session, nil
}

// ReleaseAll logs out every live session exactly once and closes the pool.
// It runs to completion even when ctx is already cancelled.
func (p *Pool) ReleaseAll(ctx context.Context) error {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]Session)
	p.closed = true
	p.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	var result *multierror.Error
	for endpoint, session := range sessions {
		logoutCtx, cancel := context.WithTimeout(ctx, releaseTimeout)
		err := session.Logout(logoutCtx)
		cancel()

		if err != nil {
			logging.LogPoolEvent(ctx, Subsystem, "release_failed", map[string]any{
				"endpoint": endpoint,
				"error":    err.Error(),
			})
			result = multierror.Append(result, fmt.Errorf("logout from %s: %w", endpoint, err))
			continue
		}
		logging.LogPoolEvent(ctx, Subsystem, "session_released", map[string]any{"endpoint": endpoint})
	}

	return result.ErrorOrNil()
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	sessions := len(p.sessions)
	p.mu.Unlock()

	return PoolStats{
		Sessions: sessions,
		Dials:    atomic.LoadInt64(&p.dials),
		Reuses:   atomic.LoadInt64(&p.reuses),
		Failures: atomic.LoadInt64(&p.failures),
	}
}
