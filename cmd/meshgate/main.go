package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"meshgate/internal/buildinfo"
	"meshgate/internal/logging"
	"meshgate/sdk"
)

func main() {
	var (
		debug  bool
		socket string
	)
	if err := logging.Configure(logging.LevelWarn, logging.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "meshgate",
		Short:         "Control a running meshgate daemon",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level, logging.FormatText)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&socket, "socket", defaultSocketPath(), "Daemon unix socket path")

	client := func() *sdk.Client { return sdk.New(socket) }

	root.AddCommand(validateCmd(client))
	root.AddCommand(upCmd(client))
	root.AddCommand(downCmd(client))
	root.AddCommand(psCmd(client))
	root.AddCommand(statusCmd(client))
	root.AddCommand(tunCmd(client))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func defaultSocketPath() string {
	if runtime.GOOS == "darwin" {
		return "/tmp/meshgated.sock"
	}
	return "/var/run/meshgated.sock"
}
