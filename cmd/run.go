package cmd

import (
	"github.com/encodeous/nyroute/core"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Probe peers on the configured schedule",
	Long: `Probes all peers on probe.schedule, saves each result to metrics_path and logs the best routes.
Latency probing uses ICMP and usually needs elevated privileges.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		receive, _ := cmd.Flags().GetBool("receive")
		m := &core.Monitor{
			Cfg:     *e.cfg,
			Log:     e.log,
			Receive: receive,
		}
		e.log.Info("nyroute is running. To gracefully exit, send SIGINT or Ctrl+C.")
		return m.Run(e.ctx)
	},
	GroupID: "measure",
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("receive", "r", false, "also receive files while running")
}
