package session

import (
	"context"
	"io"
	"log"
	"time"
)

// Keepalive pings the warm session on an interval so pooled mode notices a
// dead transport before a client request trips over it. It never dials; a
// discarded session is re-created lazily on the next acquire.
type Keepalive struct {
	manager  *Manager
	interval time.Duration
	logger   *log.Logger
}

func NewKeepalive(m *Manager, interval time.Duration, logger *log.Logger) *Keepalive {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Keepalive{
		manager:  m,
		interval: interval,
		logger:   logger,
	}
}

func (k *Keepalive) Run(ctx context.Context) {
	if k.manager == nil || k.manager.cfg.Mode != ModePooled || k.interval <= 0 {
		return
	}

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.pingOnce(ctx)
		}
	}
}

func (k *Keepalive) pingOnce(ctx context.Context) {
	m := k.manager

	m.mu.Lock()
	warm := m.warm
	m.mu.Unlock()
	if warm == nil {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	err := warm.Ping(pingCtx)
	cancel()
	if err != nil {
		k.logger.Printf("warm session ping failed, discarding: %v", err)
		m.discardWarm(warm)
	}
}
