// Package engine supervises network instance workers. It owns instance
// goroutines and their sockets; lifecycle policy (who may start what,
// and when) lives above it in the bridge layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"meshgate"
	"meshgate/bridge"
	"meshgate/config"
)

// DefaultKeepaliveInterval is how often workers probe their peers.
const DefaultKeepaliveInterval = 10 * time.Second

// Manager implements bridge.InstanceManager with in-process workers.
type Manager struct {
	rootCtx   context.Context
	dial      DialFunc
	keepalive time.Duration
	log       *slog.Logger

	guardMu sync.RWMutex
	guard   meshgate.SocketGuard

	mu      sync.Mutex
	workers map[uuid.UUID]*worker
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer injects the peer dialer. Tests use this to avoid the network.
func WithDialer(d DialFunc) Option {
	return func(m *Manager) { m.dial = d }
}

// WithKeepaliveInterval overrides the peer probe interval.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.keepalive = d
		}
	}
}

// New creates a Manager. Workers inherit ctx: cancelling it stops every
// instance.
func New(ctx context.Context, opts ...Option) *Manager {
	m := &Manager{
		rootCtx:   ctx,
		keepalive: DefaultKeepaliveInterval,
		log:       slog.With("component", "engine"),
		workers:   make(map[uuid.UUID]*worker),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dial == nil {
		m.dial = protectedDialer(m.currentGuard)
	}
	return m
}

// RegisterSocketGuard installs the socket-creation hook consulted by the
// protected dialer. Later registrations replace earlier ones.
func (m *Manager) RegisterSocketGuard(g meshgate.SocketGuard) {
	m.guardMu.Lock()
	m.guard = g
	m.guardMu.Unlock()
}

func (m *Manager) currentGuard() meshgate.SocketGuard {
	m.guardMu.RLock()
	defer m.guardMu.RUnlock()
	return m.guard
}

// Run creates and starts a worker for cfg. The declared instance id must
// not already be running.
func (m *Manager) Run(ctx context.Context, cfg bridge.Config, source string) (uuid.UUID, error) {
	netCfg, ok := cfg.(*config.Network)
	if !ok {
		return uuid.Nil, fmt.Errorf("unsupported config type %T", cfg)
	}
	id := netCfg.ID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workers[id]; exists {
		return uuid.Nil, fmt.Errorf("instance %s already exists", id)
	}

	workerCtx, cancel := context.WithCancel(m.rootCtx)
	w := newWorker(id, netCfg, source, cancel)
	m.workers[id] = w
	m.log.Info("starting instance worker", "instance", id, "name", netCfg.Name, "source", source)

	go w.run(workerCtx, m.dial, m.keepalive)
	return id, nil
}

// Delete stops and removes the given instances, waiting for each worker
// to finish tearing down. Unknown ids are ignored.
func (m *Manager) Delete(_ context.Context, ids []uuid.UUID) error {
	stopped := make([]*worker, 0, len(ids))

	m.mu.Lock()
	for _, id := range ids {
		w, ok := m.workers[id]
		if !ok {
			continue
		}
		w.cancel()
		delete(m.workers, id)
		stopped = append(stopped, w)
	}
	m.mu.Unlock()

	for _, w := range stopped {
		<-w.done
		m.log.Info("instance worker stopped", "instance", w.id)
	}
	return nil
}

// SetTunFD records the tunnel device descriptor on a running instance.
func (m *Manager) SetTunFD(_ context.Context, id uuid.UUID, fd int) error {
	m.mu.Lock()
	w, ok := m.workers[id]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown instance %s", id)
	}
	if fd <= 0 {
		return fmt.Errorf("invalid tunnel descriptor %d", fd)
	}
	w.setTunFD(fd)
	m.log.Debug("tunnel device attached", "instance", id, "fd", fd)
	return nil
}

// ListIDs returns the ids of currently running instances.
func (m *Manager) ListIDs() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	return ids
}

// CollectStatus snapshots every running instance.
func (m *Manager) CollectStatus(_ context.Context) (map[uuid.UUID]meshgate.InstanceStatus, error) {
	m.mu.Lock()
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	out := make(map[uuid.UUID]meshgate.InstanceStatus, len(workers))
	for _, w := range workers {
		out[w.id] = w.status()
	}
	return out, nil
}

// StopAll cancels every worker and waits for teardown. Called on daemon
// shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	workers := make([]*worker, 0, len(m.workers))
	for id, w := range m.workers {
		w.cancel()
		delete(m.workers, id)
		workers = append(workers, w)
	}
	m.mu.Unlock()

	for _, w := range workers {
		<-w.done
	}
	if len(workers) > 0 {
		m.log.Info("all instance workers stopped", "count", len(workers))
	}
}
