package main

import (
	"context"
	"log/slog"

	"milesfare-backend/cmd/milesfare/commands"
	"milesfare-backend/internal/components/telemetry"
)

func main() {
	otel, err := telemetry.SetupFromEnv(context.Background(), "milesfare")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}
	defer otel.Shutdown(context.Background())

	commands.Execute()
}
