package cmd

import (
	"github.com/nsyszr/pushbridge/pkg/cmd/server"
	"github.com/spf13/cobra"
)

// serveAuthorityCmd represents the serve authority command
var serveAuthorityCmd = &cobra.Command{
	Use:   "authority",
	Short: "Serve authority instance",
	Run:   server.RunServeAuthority(c),
}

func init() {
	serveCmd.AddCommand(serveAuthorityCmd)
}
