package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newRootCmd(log *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "menosctl",
		Short:         "Administrative CLI for the menos ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newIngestCmd(log),
		newMigrateCmd(log),
		newClassifyCmd(log),
		newFetchVideoCmd(log),
		newReprocessCmd(log),
	)

	return root
}
