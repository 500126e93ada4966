package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/encodeous/nyroute/core"
	"github.com/encodeous/nyroute/state"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send [peer] [file]",
	Short: "Send a file to a peer",
	Long: `Sends a file to the receiver running on a peer. If measurements are available, the planned
route and its effective bandwidth are reported first. The file is always sent over a direct connection.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		peer, file := args[0], args[1]
		if err := state.PeerValidator(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = e.cfg.Transfer.Port
		}

		reportRoute(cmd, e, state.NodeId(peer))

		sender := core.NewSender(e.cfg.Transfer, e.log)
		res, err := sender.Send(e.ctx, net.JoinHostPort(peer, strconv.Itoa(port)), file)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s: %s bytes in %s (%.2f Mbps)\n",
			res.File, peer, state.FormatBytes(res.Bytes), res.Duration, core.Mbps(res.Bytes, res.Duration))
		return nil
	},
	GroupID: "transfer",
}

// reportRoute logs the planned route to peer, if a metric store is available.
func reportRoute(cmd *cobra.Command, e *env, peer state.NodeId) {
	store, err := loadStore(cmd, e.cfg)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			e.log.Warn("could not load measurements", "error", err)
		}
		return
	}
	plan, err := core.NewPlan(store, e.cfg.Graph, e.log)
	if err != nil {
		e.log.Warn("could not plan route", "error", err)
		return
	}
	r, err := plan.RouteTo(peer)
	if err != nil {
		e.log.Warn("no planned route, sending directly anyway", "error", err)
		return
	}
	e.log.Info("planned route", "path", r.String(), "hops", r.Hops())
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().String("metrics", "", "metric store used to report the planned route")
	sendCmd.Flags().IntP("port", "p", 0, "receiver port, defaults to transfer.port of the config")
}
