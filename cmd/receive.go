package cmd

import (
	"fmt"
	"io"

	"github.com/encodeous/nyroute/core"
	"github.com/spf13/cobra"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive files from peers until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if dir := cmd.Flag("dir").Value.String(); dir != "" {
			e.cfg.Transfer.ReceiveDir = dir
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			e.cfg.Transfer.Port = port
		}

		recv := core.NewReceiver(e.cfg.Transfer, e.log)
		if err := recv.Listen(); err != nil {
			return err
		}
		if addr, err := core.DetectOverlayAddr(e.cfg.OverlayPrefixes); err == nil {
			e.log.Info("peers can send files to this node", "addr", addr, "port", e.cfg.Transfer.Port)
		}
		errs := make(chan error, 1)
		go func() {
			errs <- recv.Serve(e.ctx)
		}()

		once, _ := cmd.Flags().GetBool("once")
		return printResults(cmd.OutOrStdout(), recv, errs, once)
	},
	GroupID: "transfer",
}

// printResults prints finished transfers until the receiver stops, or after the first one when once is set.
func printResults(out io.Writer, recv *core.Receiver, errs <-chan error, once bool) error {
	results := recv.Results()
	for {
		select {
		case res, ok := <-results:
			if !ok {
				return <-errs
			}
			_, _ = fmt.Fprintln(out, res.String())
			if !once {
				continue
			}
			_ = recv.Close()
			return <-errs
		case err := <-errs:
			_ = recv.Close()
			for res := range results {
				_, _ = fmt.Fprintln(out, res.String())
			}
			if err != nil {
				return fmt.Errorf("receiver stopped: %w", err)
			}
			return nil
		}
	}
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	receiveCmd.Flags().StringP("dir", "d", "", "directory received files are written to")
	receiveCmd.Flags().IntP("port", "p", 0, "port to listen on, defaults to transfer.port of the config")
	receiveCmd.Flags().Bool("once", false, "exit after the first transfer")
}
