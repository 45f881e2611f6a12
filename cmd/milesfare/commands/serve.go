package commands

import (
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on, overrides server.port.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--port <port>]",
	Short: "Serves the JSON API, keeping search results cached between requests.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		a, err := newApp(cmd.Context(), cfg, verbose)
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer a.close()

		telemetry.InstrumentPerfStats(cmd.Context(), telemetry.SlogAPI{})
		err = serviceutil.StartHttpServer(cmd.Context(), cfg.Server.Port, a.service.Handler())
		if err != nil {
			serviceutil.Fatal("failed to serve", err)
		}
	},
}
