// Package buildinfo carries the version string stamped at build time via
// -ldflags "-X meshgate/internal/buildinfo.Version=...".
package buildinfo

var Version = "dev"
