package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamgate/internal/remote"

	"golang.org/x/sync/singleflight"
)

// DialFunc opens a fresh authenticated session to the remote store.
type DialFunc func(ctx context.Context) (remote.Store, error)

type Mode string

const (
	// ModePerRequest dials a session for every request and tears it down
	// on release. Always correct, never shares transport state.
	ModePerRequest Mode = "per-request"
	// ModePooled keeps one warm session and re-validates it with a ping
	// before reuse. The remote transports used here are safe for
	// concurrent read operations.
	ModePooled Mode = "pooled"
)

type Config struct {
	Mode        Mode
	DialTimeout time.Duration
	PingTimeout time.Duration
}

// Manager produces working remote-store sessions while honoring the
// process-wide cooldown the remote imposes after a rate-limit violation.
// The cooldown window is the only shared mutable state; it only ever grows,
// and relaxes by wall-clock passage alone.
type Manager struct {
	dial DialFunc
	cfg  Config
	now  func() time.Time

	mu            sync.Mutex
	cooldownUntil int64 // unix seconds, 0 = inactive
	warm          remote.Store

	group singleflight.Group
}

func New(dial DialFunc, cfg Config) *Manager {
	if cfg.Mode == "" {
		cfg.Mode = ModePerRequest
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	return &Manager{
		dial: dial,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Session is a leased handle. Release is safe to call more than once and
// after errors; exactly one release takes effect.
type Session struct {
	store  remote.Store
	pooled bool
	once   sync.Once
}

func (s *Session) Store() remote.Store { return s.store }

func (s *Session) Release() {
	s.once.Do(func() {
		if !s.pooled {
			_ = s.store.Close(context.Background())
		}
	})
}

// Acquire returns a usable session or fails fast with a
// *remote.RateLimitError carrying the seconds left in the cooldown window.
// No network call is attempted while the window is active; retrying into a
// live cooldown only compounds the backoff.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if remaining := m.cooldownRemaining(); remaining > 0 {
		return nil, &remote.RateLimitError{RetryAfter: remaining}
	}

	if m.cfg.Mode == ModePooled {
		store, err := m.acquireWarm(ctx)
		if err != nil {
			return nil, err
		}
		return &Session{store: store, pooled: true}, nil
	}

	store, err := m.dialFresh(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{store: store}, nil
}

func (m *Manager) dialFresh(ctx context.Context) (remote.Store, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	store, err := m.dial(dialCtx)
	if err != nil {
		return nil, m.noteDialError(err)
	}
	return store, nil
}

// acquireWarm returns the shared session, re-validating liveness and
// re-dialing when the transport reports it dead. Concurrent callers share a
// single dial via singleflight.
func (m *Manager) acquireWarm(ctx context.Context) (remote.Store, error) {
	m.mu.Lock()
	warm := m.warm
	m.mu.Unlock()

	if warm != nil {
		pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
		err := warm.Ping(pingCtx)
		cancel()
		if err == nil {
			return warm, nil
		}
		var rl *remote.RateLimitError
		if errors.As(err, &rl) {
			m.ReportRateLimit(rl.RetryAfter)
			return nil, rl
		}
		m.discardWarm(warm)
	}

	v, err, _ := m.group.Do("dial", func() (any, error) {
		m.mu.Lock()
		current := m.warm
		m.mu.Unlock()
		if current != nil {
			return current, nil
		}

		store, err := m.dialFresh(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.warm = store
		m.mu.Unlock()
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(remote.Store), nil
}

func (m *Manager) discardWarm(dead remote.Store) {
	m.mu.Lock()
	if m.warm == dead {
		m.warm = nil
	}
	m.mu.Unlock()
	_ = dead.Close(context.Background())
}

// noteDialError folds a rate-limit signal from the dial into the shared
// cooldown window before propagating it.
func (m *Manager) noteDialError(err error) error {
	var rl *remote.RateLimitError
	if errors.As(err, &rl) {
		m.ReportRateLimit(rl.RetryAfter)
		return rl
	}
	if errors.Is(err, remote.ErrAuth) {
		return err
	}
	return fmt.Errorf("dial remote store: %w", err)
}

// ReportRateLimit extends the cooldown window to now+d. Windows never
// shrink; a shorter concurrent report leaves a longer window in place.
func (m *Manager) ReportRateLimit(d time.Duration) {
	if d <= 0 {
		return
	}
	until := m.now().Unix() + int64((d+time.Second-1)/time.Second)
	m.mu.Lock()
	if until > m.cooldownUntil {
		m.cooldownUntil = until
	}
	m.mu.Unlock()
}

func (m *Manager) cooldownRemaining() time.Duration {
	m.mu.Lock()
	until := m.cooldownUntil
	m.mu.Unlock()

	remaining := until - m.now().Unix()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(remaining) * time.Second
}

// Close tears down the warm session, if any.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	warm := m.warm
	m.warm = nil
	m.mu.Unlock()

	if warm == nil {
		return nil
	}
	return warm.Close(ctx)
}
