// Package platform holds the host-side OS integrations: obtaining a TUN
// device descriptor and the concrete fwmark protection callback. Both are
// linux-only; other platforms get stubs that fail cleanly.
package platform
