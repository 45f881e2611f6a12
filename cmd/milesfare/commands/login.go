package commands

import (
	"fmt"

	"milesfare-backend/internal/scrapers/award"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Opens the loyalty-program login page in a remote browser and waits for you to log in.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(cmd, func(a app) error {
			if a.login != nil {
				a.login.OnState = func(state award.LoginState, debugURL string) {
					if state == award.StateWaitingForUser {
						fmt.Printf("Log in through the live browser view:\n  %s\n", debugURL)
					}
				}
			}
			result := a.service.Login(cmd.Context())
			fmt.Println(result.Message)
			if !result.Success {
				return fmt.Errorf("login failed")
			}
			return nil
		})
	},
}
