package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"meshgate"
	"meshgate/cmd/meshgate/ui"
	"meshgate/sdk"
)

func statusCmd(client func() *sdk.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-instance status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := client().Status(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println(ui.Muted("no running instances"))
				return nil
			}

			statuses := make([]meshgate.InstanceStatus, 0, len(entries))
			for _, e := range entries {
				var st meshgate.InstanceStatus
				if err := json.Unmarshal([]byte(e.Status), &st); err != nil {
					fmt.Println(ui.WarnMsg("instance %s: unreadable status", e.ID))
					continue
				}
				statuses = append(statuses, st)
			}
			sort.Slice(statuses, func(i, j int) bool {
				return statuses[i].ID.String() < statuses[j].ID.String()
			})

			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				alive := 0
				for _, p := range st.Peers {
					if p.State == meshgate.PeerAlive.String() {
						alive++
					}
				}
				tun := "-"
				if st.TunFD > 0 {
					tun = strconv.Itoa(st.TunFD)
				}
				rows = append(rows, []string{
					st.ID.String(),
					st.Name,
					ui.Phase(st.Phase),
					tun,
					fmt.Sprintf("%d/%d", alive, len(st.Peers)),
					st.StartedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Println(ui.Table(
				[]string{"ID", "NAME", "PHASE", "TUN", "PEERS", "STARTED"},
				rows,
			))
			return nil
		},
	}
}
