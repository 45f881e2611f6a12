package commands

import (
	"milesfare-backend/internal/airfare"

	"github.com/spf13/cobra"
)

var (
	listingsAirline        string
	listingsMilesRange     string
	listingsUnitPriceRange string
	listingsJSON           bool
)

func init() {
	listingsCmd.Flags().StringVar(&listingsAirline, "airline", "all", "IATA code or airline name.")
	listingsCmd.Flags().StringVar(&listingsMilesRange, "miles-range", "unlimited", "Marketplace miles range filter.")
	listingsCmd.Flags().StringVar(&listingsUnitPriceRange, "unit-price-range", "unlimited", "Marketplace price per mile filter.")
	listingsCmd.Flags().BoolVar(&listingsJSON, "json", false, "Print the result as json.")
	rootCmd.AddCommand(listingsCmd)
}

var listingsCmd = &cobra.Command{
	Use:   "listings [--airline <code>]",
	Short: "Lists miles offered for sale on the marketplace.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(cmd, func(a app) error {
			result, err := a.service.SearchListings(cmd.Context(), airfare.ListingSearchParams{
				Airline:        listingsAirline,
				MilesRange:     listingsMilesRange,
				UnitPriceRange: listingsUnitPriceRange,
			})
			if err != nil {
				return err
			}
			if listingsJSON {
				return printJSON(result)
			}
			printListings(result)
			return nil
		})
	},
}
