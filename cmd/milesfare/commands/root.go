package commands

import (
	"fmt"
	"os"

	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "milesfare",
	Short: "milesfare compares cash fares, award fares and marketplace miles prices.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "milesfare.json5", "The config file to read.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output and dump http traffic.")
}

// withApp builds the app from config and runs fn with it.
func withApp(cmd *cobra.Command, fn func(a app) error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	a, err := newApp(cmd.Context(), cfg, verbose)
	if err != nil {
		serviceutil.Fatal("failed to initialize", err)
	}
	err = fn(a)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func Execute() {
	ctx := serviceutil.SignalContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
