//go:build linux

package platform

import (
	"context"
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"

	"meshgate/bridge"
)

// FwmarkProtector returns a protection callback that stamps sockets with
// a firewall mark. A policy routing rule keyed on the mark keeps marked
// traffic on the physical interface instead of the tunnel device.
func FwmarkProtector(mark uint32) bridge.ProtectFunc {
	return func(_ context.Context, fd int, _ netip.AddrPort) error {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_MARK, int(mark)); err != nil {
			return fmt.Errorf("set SO_MARK %d on fd %d: %w", mark, fd, err)
		}
		return nil
	}
}
