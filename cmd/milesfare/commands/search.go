package commands

import (
	"milesfare-backend/internal/airfare"

	"github.com/spf13/cobra"
)

var (
	searchCabin      string
	searchReturn     string
	searchPassengers int
	searchJSON       bool
)

func init() {
	searchCmd.Flags().StringVar(&searchCabin, "cabin", "economy", "economy, premium-economy, business or first.")
	searchCmd.Flags().StringVar(&searchReturn, "return", "", "Return date (YYYY-MM-DD).")
	searchCmd.Flags().IntVar(&searchPassengers, "passengers", 1, "Number of passengers (1-9).")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the result as json.")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <from> <to> <date>",
	Short: "Searches cash and award fares and prices the buy-miles option.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(cmd, func(a app) error {
			result, err := a.service.Search(cmd.Context(), airfare.RawSearchRequest{
				Origin:      args[0],
				Destination: args[1],
				DepartDate:  args[2],
				ReturnDate:  searchReturn,
				Cabin:       searchCabin,
				Passengers:  &searchPassengers,
			})
			if err != nil {
				return err
			}
			if searchJSON {
				return printJSON(result)
			}
			printFlights(result)
			return nil
		})
	},
}
