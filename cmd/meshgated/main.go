package main

import (
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"meshgate/daemon"
	"meshgate/internal/buildinfo"
	"meshgate/internal/logging"
)

func main() {
	if err := logging.Configure(logging.LevelInfo, logging.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		socketPath     string
		logFormat      string
		debug          bool
		protectTimeout time.Duration
		fwmark         uint32
		tunName        string
		tunMTU         int
	)

	cmd := &cobra.Command{
		Use:     "meshgated",
		Short:   "Meshgate instance bridge daemon",
		Version: buildinfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return daemon.Run(ctx, daemon.Options{
				SocketPath:     socketPath,
				ProtectTimeout: protectTimeout,
				Fwmark:         fwmark,
				TunName:        tunName,
				TunMTU:         tunMTU,
			})
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format (text or json)")
	cmd.Flags().StringVar(&socketPath, "socket", defaultSocketPath(), "Unix socket path")
	cmd.Flags().DurationVar(&protectTimeout, "protect-timeout", 0, "Max wait for host protection confirmation (0 = default)")
	cmd.Flags().Uint32Var(&fwmark, "fwmark", 0, "Register the built-in fwmark protection callback with this mark")
	cmd.Flags().StringVar(&tunName, "tun", "", "Open this TUN device and use its descriptor as the tunnel handle")
	cmd.Flags().IntVar(&tunMTU, "tun-mtu", 0, "MTU for the daemon-opened TUN device")
	return cmd
}

func defaultSocketPath() string {
	if runtime.GOOS == "darwin" {
		return "/tmp/meshgated.sock"
	}
	return "/var/run/meshgated.sock"
}
