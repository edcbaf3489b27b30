// Package daemon wires the engine, the bridge, and the control API into
// one long-running process.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"meshgate/bridge"
	"meshgate/config"
	"meshgate/engine"
	"meshgate/internal/telemetry"
	"meshgate/platform"
)

// Options configures a daemon run.
type Options struct {
	SocketPath     string
	ProtectTimeout time.Duration

	// Fwmark enables the built-in fwmark protection callback when > 0.
	Fwmark uint32

	// TunName, when set, makes the daemon open its own TUN device and hand
	// the descriptor to the bridge. Hosts that own the device themselves
	// set the descriptor through the control API instead.
	TunName string
	TunMTU  int
}

// Run starts the engine and the control API and blocks until ctx is
// cancelled. Instances still running at shutdown are torn down.
func Run(ctx context.Context, opts Options) error {
	shutdownTracing := telemetry.Setup()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	mgr := engine.New(ctx)
	defer mgr.StopAll()

	br := bridge.New(mgr, bridge.LoaderFunc(func(text string) (bridge.Config, error) {
		n, err := config.Parse(text)
		if err != nil {
			return nil, err
		}
		return n, nil
	}), bridge.WithProtectTimeout(opts.ProtectTimeout))

	if opts.Fwmark > 0 {
		br.RegisterCallback(platform.FwmarkProtector(opts.Fwmark))
		slog.Info("fwmark protection callback registered", "mark", opts.Fwmark)
	}

	if opts.TunName != "" {
		mtu := opts.TunMTU
		if mtu <= 0 {
			mtu = config.DefaultMTU
		}
		fd, closeTun, err := platform.OpenTUN(opts.TunName, mtu)
		if err != nil {
			return fmt.Errorf("open tun device: %w", err)
		}
		defer func() { _ = closeTun() }()
		br.SetTunFD(fd)
		slog.Info("tun device opened", "name", opts.TunName, "fd", fd, "mtu", mtu)
	}

	srv := NewServer(br)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx, opts.SocketPath) })
	g.Go(func() error {
		// Tell systemd we are ready once the listener goroutine is up.
		if _, err := systemd.SdNotify(false, systemd.SdNotifyReady); err != nil {
			slog.Warn("systemd ready notification failed", "err", err)
		}
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}
