//go:build linux

package platform

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/tun"
)

// OpenTUN creates the named TUN device, brings the link up, and returns
// the descriptor the host hands to the bridge as the tunnel handle. The
// returned closer tears the device down.
func OpenTUN(name string, mtu int) (int, func() error, error) {
	dev, err := tun.CreateTUN(name, mtu)
	if err != nil {
		return 0, nil, fmt.Errorf("create tun %q: %w", name, err)
	}

	realName, err := dev.Name()
	if err != nil {
		_ = dev.Close()
		return 0, nil, fmt.Errorf("tun device name: %w", err)
	}

	link, err := netlink.LinkByName(realName)
	if err != nil {
		_ = dev.Close()
		return 0, nil, fmt.Errorf("find tun link %q: %w", realName, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		_ = dev.Close()
		return 0, nil, fmt.Errorf("set tun link %q up: %w", realName, err)
	}

	return int(dev.File().Fd()), dev.Close, nil
}
