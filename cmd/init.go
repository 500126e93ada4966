package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/nyroute/state"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init [id] [peer...]",
	Short: "Create a node configuration",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := state.NameValidator(name); err != nil {
			return fmt.Errorf("invalid name %q: %w", name, err)
		}
		peers := make([]state.NodeId, 0, len(args)-1)
		for _, p := range args[1:] {
			if err := state.PeerValidator(p); err != nil {
				return fmt.Errorf("invalid peer %q: %w", p, err)
			}
			peers = append(peers, state.NodeId(p))
		}

		nodeCfg := state.SampleConfig(state.NodeId(name), peers)
		mode, err := state.ParseMetricKind(cmd.Flag("mode").Value.String())
		if err != nil {
			return err
		}
		nodeCfg.Probe.Mode = mode
		nodeCfg.Graph.Mesh, _ = cmd.Flags().GetBool("mesh")
		if err := state.ConfigValidator(&nodeCfg); err != nil {
			return err
		}

		ncfg, err := yaml.Marshal(&nodeCfg)
		if err != nil {
			return err
		}

		outPath := cmd.Flag("output").Value.String()
		if force, _ := cmd.Flags().GetBool("force"); !force {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists, use --force to overwrite", outPath)
			}
		}
		err = os.WriteFile(outPath, ncfg, 0600)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("output", "o", state.DefaultConfigPath, "node config output file path")
	initCmd.Flags().StringP("mode", "m", state.Bandwidth.String(), "metric to probe: bandwidth or latency")
	initCmd.Flags().Bool("mesh", false, "add inferred peer-to-peer edges to the graph")
	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing config")
}
