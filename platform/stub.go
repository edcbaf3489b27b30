//go:build !linux

package platform

import (
	"context"
	"errors"
	"net/netip"

	"meshgate/bridge"
)

// OpenTUN is linux-only.
func OpenTUN(string, int) (int, func() error, error) {
	return 0, nil, errors.New("tun devices are not supported on this platform")
}

// FwmarkProtector is linux-only.
func FwmarkProtector(uint32) bridge.ProtectFunc {
	return func(context.Context, int, netip.AddrPort) error {
		return errors.New("fwmark protection requires linux")
	}
}
