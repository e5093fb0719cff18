package cmd

import (
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <uid> [model] <json-payload>",
	Short: "Push an object, or a notification when model is omitted, to a user",
	Run:   cmdHandler.Send.Send,
}

func init() {
	RootCmd.AddCommand(sendCmd)
}
