package bridge

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

// ProtectFunc is the host-supplied protection callback. It must return
// only once the host has actually exempted fd from tunnel routing; the
// return is the completion signal the calling engine worker blocks on.
// The bridge never invokes it concurrently with itself.
type ProtectFunc func(ctx context.Context, fd int, raddr netip.AddrPort) error

// DefaultProtectTimeout bounds how long an engine worker blocks waiting
// for the host to confirm a protection request.
const DefaultProtectTimeout = 500 * time.Millisecond

// Protector holds the registered host callback and answers the engine's
// socket-creation hook. At most one callback is registered at a time;
// re-registration replaces it.
//
// ProtectSocket deliberately blocks the calling engine worker until the
// host confirms: the engine must not connect a socket whose protection is
// still pending. Invocations are serialized because the host callback runs
// in the host's own single-threaded context and is not reentrant-safe.
type Protector struct {
	ledger  *Ledger
	timeout time.Duration
	log     *slog.Logger

	// invokeMu spans the whole invoke-and-wait step.
	invokeMu sync.Mutex

	cbMu sync.RWMutex
	cb   ProtectFunc
}

func newProtector(ledger *Ledger, timeout time.Duration) *Protector {
	if timeout <= 0 {
		timeout = DefaultProtectTimeout
	}
	return &Protector{
		ledger:  ledger,
		timeout: timeout,
		log:     slog.With("component", "protector"),
	}
}

// Register replaces the active callback, unconditionally.
func (p *Protector) Register(cb ProtectFunc) {
	p.cbMu.Lock()
	p.cb = cb
	p.cbMu.Unlock()
	p.log.Debug("protection callback registered")
}

// ProtectSocket implements meshgate.SocketGuard.
//
// Already-protected descriptors return true without invoking the host.
// With no callback registered the socket proceeds unprotected (false);
// that is reportable, not fatal. Otherwise the callback is invoked and the
// caller blocks until it completes or the timeout elapses; on timeout or
// callback error the socket is treated as unprotected.
func (p *Protector) ProtectSocket(fd int, raddr netip.AddrPort) bool {
	if p.ledger.Contains(fd) {
		p.log.Debug("fd already protected", "fd", fd)
		return true
	}

	p.cbMu.RLock()
	cb := p.cb
	p.cbMu.RUnlock()
	if cb == nil {
		p.log.Error("no protection callback registered", "fd", fd, "peer", raddr)
		return false
	}

	p.invokeMu.Lock()
	defer p.invokeMu.Unlock()

	// Another worker may have protected the same fd while we waited for
	// the invoke lock.
	if p.ledger.Contains(fd) {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cb(ctx, fd, raddr) }()

	select {
	case err := <-done:
		if err != nil {
			p.log.Warn("protection callback failed", "fd", fd, "peer", raddr, "err", err)
			return false
		}
	case <-ctx.Done():
		p.log.Warn("protection callback timed out", "fd", fd, "peer", raddr, "timeout", p.timeout)
		return false
	}

	p.ledger.Mark(fd)
	p.log.Debug("socket protected", "fd", fd, "peer", raddr)
	return true
}
