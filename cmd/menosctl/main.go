// Command menosctl is the administrative CLI for the menos ingestion
// pipeline: one-off ingestion, schema migrations, manual classification,
// direct video fetches, and forced reprocessing, for operators who need to
// drive the pipeline without going through the HTTP API.
//
// Exit codes: 0 on success, 1 when a subcommand runs but fails, 2 when the
// command line itself is wrong (bad arguments, missing required input).
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := newRootCmd(logger)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
