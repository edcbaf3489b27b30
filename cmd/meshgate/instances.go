package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshgate/cmd/meshgate/ui"
	"meshgate/sdk"
)

func validateCmd(client func() *sdk.Client) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a network config without starting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			valid, reason, err := client().Validate(cmd.Context(), string(text))
			if err != nil {
				return err
			}
			if !valid {
				fmt.Println(ui.ErrorMsg("invalid config: %s", reason))
				os.Exit(1)
			}
			fmt.Println(ui.SuccessMsg("config is valid"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Network config file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func upCmd(client func() *sdk.Client) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start a network instance from a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			id, err := client().Start(cmd.Context(), string(text))
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("instance started"))
			fmt.Print(ui.KeyValues("  ", ui.KV("ID", id)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Network config file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func downCmd(client func() *sdk.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "down <id>...",
		Short: "Stop instances by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skipped, err := client().Stop(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, id := range skipped {
				fmt.Println(ui.WarnMsg("skipped unparseable id %q", id))
			}
			fmt.Println(ui.SuccessMsg("stopped %d instance(s)", len(args)-len(skipped)))
			return nil
		},
	}
}

func psCmd(client func() *sdk.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List running instance ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := client().Running(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println(ui.Muted("no running instances"))
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func tunCmd(client func() *sdk.Client) *cobra.Command {
	var fd int
	cmd := &cobra.Command{
		Use:   "set-tun",
		Short: "Hand a TUN device descriptor to the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client().SetTunFD(cmd.Context(), fd); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("tunnel descriptor set to %d", fd))
			return nil
		},
	}
	cmd.Flags().IntVar(&fd, "fd", 0, "Open TUN file descriptor")
	_ = cmd.MarkFlagRequired("fd")
	return cmd
}
