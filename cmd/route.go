package cmd

import (
	"fmt"

	"github.com/encodeous/nyroute/core"
	"github.com/encodeous/nyroute/state"
	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Plan routes and the spanning tree from the last saved measurements",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		store, err := loadStore(cmd, e.cfg)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("mesh") {
			e.cfg.Graph.Mesh, _ = cmd.Flags().GetBool("mesh")
		}
		plan, err := core.NewPlan(store, e.cfg.Graph, e.log)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var route *state.Route
		if to := cmd.Flag("to").Value.String(); to != "" {
			r, err := plan.RouteTo(state.NodeId(to))
			if err != nil {
				return err
			}
			route = &r
		} else if best, ok := plan.Best(); ok {
			route = &best
		}

		snap := plan.Snapshot(route)
		if asYaml, _ := cmd.Flags().GetBool("yaml"); asYaml {
			data, err := snap.YAML()
			if err != nil {
				return err
			}
			_, _ = out.Write(data)
			return nil
		}
		_, _ = fmt.Fprint(out, snap.String())
		for _, p := range store.Peers() {
			r, err := plan.RouteTo(p)
			if err != nil {
				_, _ = fmt.Fprintf(out, "%s: %v\n", p, err)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s: %s\n", p, r.String())
		}
		return nil
	},
	GroupID: "measure",
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.Flags().String("metrics", "", "metric store to read, defaults to metrics_path of the config")
	routeCmd.Flags().StringP("to", "t", "", "destination to plan a route to, defaults to the best peer")
	routeCmd.Flags().Bool("mesh", false, "add inferred peer-to-peer edges")
	routeCmd.Flags().Bool("yaml", false, "print the snapshot as yaml")
}
