// Package bridge coordinates instance lifecycle and socket protection
// between a host environment and the mesh engine. It owns four pieces of
// process state — the running-instance registry, the protected-socket
// ledger, the protection callback slot, and the tunnel descriptor slot —
// each behind its own lock; no global lock spans them.
//
// The layer is reactive: it is driven by host calls on one side and by
// engine workers hitting the socket-creation hook on the other. It owns
// no goroutines of its own.
package bridge

import (
	"log/slog"
	"time"
)

// Bridge is the explicit context object composing the ledger, the
// protector, the tunnel slot, and the lifecycle controller. Construct one
// at process start and keep it for the life of the process.
type Bridge struct {
	Ledger    *Ledger
	Protector *Protector
	TunFD     *TunFD
	*Controller
}

// Option configures a Bridge.
type Option func(*settings)

type settings struct {
	protectTimeout time.Duration
}

// WithProtectTimeout bounds the wait for host confirmation of a
// protection request. Zero or negative keeps the default.
func WithProtectTimeout(d time.Duration) Option {
	return func(s *settings) { s.protectTimeout = d }
}

// New wires the bridge and installs its protector as the engine's
// socket-creation hook. The hook is installed exactly once, here;
// re-registering a host callback later swaps only the callback.
func New(engine InstanceManager, loader ConfigLoader, opts ...Option) *Bridge {
	s := settings{protectTimeout: DefaultProtectTimeout}
	for _, opt := range opts {
		opt(&s)
	}

	ledger := NewLedger()
	protector := newProtector(ledger, s.protectTimeout)
	tun := NewTunFD()

	engine.RegisterSocketGuard(protector)

	return &Bridge{
		Ledger:     ledger,
		Protector:  protector,
		TunFD:      tun,
		Controller: newController(engine, loader, ledger, tun),
	}
}

// RegisterCallback replaces the host protection callback.
func (b *Bridge) RegisterCallback(cb ProtectFunc) {
	b.Protector.Register(cb)
}

// SetTunFD stores the host-provided tunnel device descriptor for the next
// instance start.
func (b *Bridge) SetTunFD(fd int) {
	b.TunFD.Set(fd)
	slog.Debug("tunnel device descriptor stored", "component", "bridge", "fd", fd)
}
