package cmd

import (
	"os"

	"github.com/encodeous/nyroute/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nyroute",
	Short: "Overlay link measurement and file transfer",
	Long: `nyroute measures the bandwidth or latency from this host to its overlay peers,
plans routes over the resulting graph and transfers files between peers.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Configuration",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "measure",
		Title: "Measurement & Routing",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "transfer",
		Title: "File Transfer",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", state.DefaultConfigPath, "node config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&debugAddr, "debug", "", "serve expvar and metrics on this address, e.g. 127.0.0.1:6060")
}
