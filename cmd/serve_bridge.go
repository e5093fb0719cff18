package cmd

import (
	"github.com/nsyszr/pushbridge/pkg/cmd/server"
	"github.com/spf13/cobra"
)

// serveBridgeCmd represents the serve bridge command
var serveBridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the push bridge workers and the management API",
	Run:   server.RunServeBridge(c),
}

func init() {
	serveCmd.AddCommand(serveBridgeCmd)
}
