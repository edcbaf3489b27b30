package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"meshgate"
	"meshgate/config"
)

// keepalive is the wire-level probe a worker sends to each connected peer.
var keepalive = []byte("mgka")

type peerState struct {
	state     meshgate.PeerState
	lastReply time.Time
}

// worker runs one network instance: a goroutine per configured peer that
// dials through the protected dialer and keeps the connection warm.
type worker struct {
	id     uuid.UUID
	cfg    *config.Network
	source string
	cancel context.CancelFunc
	done   chan struct{}
	log    *slog.Logger

	mu        sync.RWMutex
	phase     Phase
	startedAt time.Time
	lastErr   string
	tunFD     int
	peers     map[string]*peerState
}

func newWorker(id uuid.UUID, cfg *config.Network, source string, cancel context.CancelFunc) *worker {
	w := &worker{
		id:     id,
		cfg:    cfg,
		source: source,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    slog.With("component", "engine-worker", "instance", id),

		phase:     PhaseStarting,
		startedAt: time.Now(),
		peers:     make(map[string]*peerState),
	}
	for _, p := range cfg.Peers {
		w.peers[p.String()] = &peerState{state: meshgate.PeerNew}
	}
	return w
}

func (w *worker) run(ctx context.Context, dial DialFunc, keepaliveEvery time.Duration) {
	defer close(w.done)

	var wg sync.WaitGroup
	for _, p := range w.cfg.Peers {
		wg.Add(1)
		go func(p config.Peer) {
			defer wg.Done()
			w.peerLoop(ctx, dial, p, keepaliveEvery)
		}(p)
	}

	w.setPhase(PhaseRunning)
	wg.Wait()

	w.mu.Lock()
	w.phase = w.phase.Transition(PhaseStopping)
	w.mu.Unlock()
}

func (w *worker) peerLoop(ctx context.Context, dial DialFunc, peer config.Peer, every time.Duration) {
	key := peer.String()
	for {
		conn, err := dial(ctx, peer.Proto, peer.HostPort)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("peer dial failed", "peer", key, "err", err)
			w.notePeer(key, meshgate.PeerFailed, time.Time{})
			w.setLastErr(err.Error())
			if !sleepWithContext(ctx, every) {
				return
			}
			continue
		}

		w.notePeer(key, meshgate.PeerAlive, time.Now())
		w.log.Debug("peer connected", "peer", key)

		for {
			if _, err := conn.Write(keepalive); err != nil {
				w.log.Warn("peer keepalive failed", "peer", key, "err", err)
				w.notePeer(key, meshgate.PeerSuspect, time.Time{})
				break
			}
			w.notePeer(key, meshgate.PeerAlive, time.Now())
			if !sleepWithContext(ctx, every) {
				_ = conn.Close()
				return
			}
		}
		_ = conn.Close()

		if !sleepWithContext(ctx, every) {
			return
		}
	}
}

// notePeer updates one peer's state and recomputes the worker phase:
// degraded when every peer is failed, running otherwise.
func (w *worker) notePeer(key string, st meshgate.PeerState, lastReply time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ps, ok := w.peers[key]
	if !ok {
		return
	}
	ps.state = st
	if !lastReply.IsZero() {
		ps.lastReply = lastReply
	}

	if w.phase != PhaseRunning && w.phase != PhaseDegraded {
		return
	}
	allFailed := len(w.peers) > 0
	for _, p := range w.peers {
		if p.state != meshgate.PeerFailed {
			allFailed = false
			break
		}
	}
	switch {
	case allFailed && w.phase == PhaseRunning:
		w.phase = w.phase.Transition(PhaseDegraded)
	case !allFailed && w.phase == PhaseDegraded:
		w.phase = w.phase.Transition(PhaseRunning)
	}
}

func (w *worker) setPhase(p Phase) {
	w.mu.Lock()
	w.phase = w.phase.Transition(p)
	w.mu.Unlock()
}

func (w *worker) setLastErr(msg string) {
	w.mu.Lock()
	w.lastErr = msg
	w.mu.Unlock()
}

func (w *worker) setTunFD(fd int) {
	w.mu.Lock()
	w.tunFD = fd
	w.mu.Unlock()
}

func (w *worker) status() meshgate.InstanceStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	st := meshgate.InstanceStatus{
		ID:        w.id,
		Name:      w.cfg.Name,
		Phase:     w.phase.String(),
		TunFD:     w.tunFD,
		StartedAt: w.startedAt,
		LastError: w.lastErr,
	}
	for key, ps := range w.peers {
		st.Peers = append(st.Peers, meshgate.PeerStatus{
			Endpoint:  key,
			State:     ps.state.String(),
			LastReply: ps.lastReply,
		})
	}
	return st
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
