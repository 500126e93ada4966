package cmd

import (
	"context"
	"fmt"

	"github.com/encodeous/nyroute/core"
	"github.com/encodeous/nyroute/state"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Measure every configured peer once and save the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if m := cmd.Flag("mode").Value.String(); m != "" {
			mode, err := state.ParseMetricKind(m)
			if err != nil {
				return err
			}
			e.cfg.Probe.Mode = mode
		}
		if len(e.cfg.Peers) == 0 {
			return fmt.Errorf("no peers configured in %s", configPath)
		}

		svc := core.NewProbeService(e.cfg.Peers, core.NewProber(e.cfg.Probe), e.cfg.Probe, e.log)
		svc.Start(e.ctx)
		defer func() {
			e.cancel()
			svc.Wait()
		}()
		svc.Trigger()

		var store *state.MetricStore
		select {
		case store = <-svc.Results():
		case <-e.ctx.Done():
			return context.Cause(e.ctx)
		}
		if err := state.SaveMetricStore(e.cfg.MetricsPath, store); err != nil {
			return err
		}
		e.log.Info("metrics saved", "path", e.cfg.MetricsPath)

		out := cmd.OutOrStdout()
		kind := store.Kind()
		for _, p := range store.Peers() {
			v, _ := store.Value(p)
			if kind.IsFailure(v) {
				_, _ = fmt.Fprintf(out, "%s\tfailed\n", p)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%.2f %s\n", p, v, kind.Unit())
		}
		return nil
	},
	GroupID: "measure",
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringP("mode", "m", "", "override the configured metric: bandwidth or latency")
}
