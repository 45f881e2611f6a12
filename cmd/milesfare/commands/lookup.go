package commands

import (
	"fmt"

	"milesfare-backend/internal/airfare"

	"github.com/spf13/cobra"
)

var (
	flightSearch  []string
	listingSearch string
)

func init() {
	flightCmd.Flags().StringSliceVar(&flightSearch, "search", nil, "Run this search first: <from>,<to>,<date>.")
	listingCmd.Flags().StringVar(&listingSearch, "airline", "all", "Run a listings search for this airline first.")
	rootCmd.AddCommand(flightCmd)
	rootCmd.AddCommand(listingCmd)
}

var flightCmd = &cobra.Command{
	Use:   "flight <id> [--search <from>,<to>,<date>]",
	Short: "Prints one flight from a recent search.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(cmd, func(a app) error {
			if len(flightSearch) > 0 {
				if len(flightSearch) != 3 {
					return fmt.Errorf("--search takes <from>,<to>,<date>")
				}
				_, err := a.service.Search(cmd.Context(), airfare.RawSearchRequest{
					Origin:      flightSearch[0],
					Destination: flightSearch[1],
					DepartDate:  flightSearch[2],
				})
				if err != nil {
					return err
				}
			}
			flight, ok := a.service.GetFlightByID(args[0])
			if !ok {
				return airfare.Errorf(airfare.KindNoResults, "flight '%s' not found, search first", args[0])
			}
			return printJSON(flight)
		})
	},
}

var listingCmd = &cobra.Command{
	Use:   "listing <id> [--airline <code>]",
	Short: "Prints one marketplace listing, searching the airline's listings first.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(cmd, func(a app) error {
			_, err := a.service.SearchListings(cmd.Context(), airfare.ListingSearchParams{Airline: listingSearch})
			if err != nil {
				return err
			}
			listing, ok := a.service.GetListingByID(args[0])
			if !ok {
				return airfare.Errorf(airfare.KindNoResults, "listing '%s' not found", args[0])
			}
			return printJSON(listing)
		})
	},
}
