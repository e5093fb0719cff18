package cmd

import (
	"github.com/spf13/cobra"
)

// userAddCmd represents the user add command
var userAddCmd = &cobra.Command{
	Use:   "add <login> <password>",
	Short: "Add a user that devices can log in with",
	Run:   cmdHandler.User.AddUser,
}

func init() {
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().String("name", "", "display name (default is the login)")
	userAddCmd.Flags().Int32("contact", 0, "contact id reported on login")
}
