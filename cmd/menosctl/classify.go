package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/menosai/menos/internal/resolver"
)

func newClassifyCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <content-id>",
		Short: "Run entity resolution against an already-stored content record",
		Long: `classify fetches the content's stored text (from its metadata snapshot,
falling back to the blob store) and runs the same three-stage resolution
pipeline a pipeline job would, printing the resulting edges and entity
counts instead of persisting a job outcome silently in the background.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return newUsageError("classify requires exactly one content ID argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd.Context(), log, args[0])
		},
	}
	return cmd
}

func runClassify(ctx context.Context, log *slog.Logger, contentID string) error {
	svc, err := newServices(ctx, log)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	content, err := svc.store.GetContent(ctx, contentID)
	if err != nil {
		return fmt.Errorf("get content: %w", err)
	}

	text, _ := content.Metadata["content_text"].(string)
	if text == "" && svc.blob != nil && content.FilePath != "" {
		if data, err := svc.blob.Get(ctx, content.FilePath); err == nil {
			text = string(data)
		}
	}
	if text == "" {
		return fmt.Errorf("classify: no stored text found for content %s", contentID)
	}

	result, err := svc.resolverSvc.ProcessContent(ctx, resolver.Input{
		ContentID:   content.ID,
		ContentText: text,
		ContentType: content.ContentType,
		Title:       content.Title,
	})
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	fmt.Printf("edges=%d entities_created=%d entities_reused=%d\n",
		len(result.Edges), result.EntitiesCreated, result.EntitiesReused)
	return nil
}
