package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newIngestCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <url>",
		Short: "Ingest a single YouTube or web URL",
		Long: `Ingest fetches a URL the same way POST /api/v1/ingest does: classify,
extract or fetch a transcript, store the raw payload, and submit a pipeline
job for entity resolution.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return newUsageError("ingest requires exactly one URL argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), log, args[0])
		},
	}
	return cmd
}

func runIngest(ctx context.Context, log *slog.Logger, rawURL string) error {
	svc, err := newServices(ctx, log)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	result, err := svc.ingestSvc.Ingest(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Printf("content_id=%s content_type=%s title=%q job_id=%s\n",
		result.ContentID, result.ContentType, result.Title, result.JobID)
	return nil
}
