package engine

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"syscall"
	"time"

	"meshgate"
)

const dialTimeout = 10 * time.Second

// DialFunc establishes one outbound connection to a peer endpoint.
// Injectable so tests run without touching the network.
type DialFunc func(ctx context.Context, proto, hostPort string) (net.Conn, error)

// protectedDialer dials through net.Dialer with a Control hook that runs
// between socket creation and connect: the only portable seam where the
// socket guard can act before any packet leaves. A socket the guard
// declines to protect still proceeds — unprotected traffic may route
// through the tunnel, which is reportable, not fatal.
func protectedDialer(guard func() meshgate.SocketGuard) DialFunc {
	log := slog.With("component", "engine-dialer")
	return func(ctx context.Context, proto, hostPort string) (net.Conn, error) {
		d := net.Dialer{
			Timeout: dialTimeout,
			Control: func(network, address string, c syscall.RawConn) error {
				g := guard()
				if g == nil {
					log.Warn("no socket guard installed, dialing unprotected", "peer", address)
					return nil
				}
				raddr, _ := netip.ParseAddrPort(address)
				var protected bool
				if err := c.Control(func(fd uintptr) {
					protected = g.ProtectSocket(int(fd), raddr)
				}); err != nil {
					return err
				}
				if !protected {
					log.Warn("socket not protected, proceeding", "peer", address)
				}
				return nil
			},
		}
		return d.DialContext(ctx, proto, hostPort)
	}
}
