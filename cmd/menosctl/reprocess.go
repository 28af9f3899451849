package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/orchestrator"
)

func newReprocessCmd(log *slog.Logger) *cobra.Command {
	var force bool
	var wait bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reprocess <content-id>",
		Short: "Resubmit a content record for pipeline processing",
		Long: `reprocess mirrors POST /api/v1/content/{id}/reprocess: without --force a
content already at the configured pipeline version and marked completed is
reported already current and left alone; --force always resubmits.

With --wait, menosctl also runs a single worker against the submitted job
until it reaches a terminal state, since there is no background worker pool
to pick it up outside the API or worker processes. --dry-run reports what
would happen without submitting a job.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return newUsageError("reprocess requires exactly one content ID argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReprocess(cmd.Context(), log, args[0], force, wait, dryRun)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "resubmit even if the content is already at the current pipeline version")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the submitted job reaches a terminal state")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without submitting a job")
	return cmd
}

func runReprocess(ctx context.Context, log *slog.Logger, contentID string, force, wait, dryRun bool) error {
	svc, err := newServices(ctx, log)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	content, err := svc.store.GetContent(ctx, contentID)
	if err != nil {
		return fmt.Errorf("get content: %w", err)
	}

	if !force && content.PipelineVersion >= svc.cfg.PipelineVersion && content.ProcessingStatus == domain.StatusCompleted {
		fmt.Printf("content_id=%s status=already_current\n", contentID)
		return nil
	}

	text, _ := content.Metadata["content_text"].(string)
	if text == "" && svc.blob != nil && content.FilePath != "" {
		if data, err := svc.blob.Get(ctx, content.FilePath); err == nil {
			text = string(data)
		}
	}

	if dryRun {
		fmt.Printf("content_id=%s status=would_queue content_chars=%d\n", contentID, len(text))
		return nil
	}

	job, err := svc.orchSvc.Submit(ctx, orchestrator.Submission{
		ContentID:   content.ID,
		ContentText: text,
		ContentType: content.ContentType,
		Title:       content.Title,
		ResourceKey: content.ResourceKey(),
		DataTier:    domain.DataTierFull,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if job == nil {
		fmt.Printf("content_id=%s status=pipeline_disabled\n", contentID)
		return nil
	}
	fmt.Printf("content_id=%s status=queued job_id=%s\n", contentID, job.ID)

	if !wait {
		return nil
	}
	return waitForJob(ctx, svc, job.ID)
}

// waitForJob runs the orchestrator's worker pool just long enough to drain
// the one job this command submitted, since a standalone menosctl invocation
// has no long-running worker pool to pick it up otherwise.
func waitForJob(parent context.Context, svc *services, jobID string) error {
	runCtx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.orchSvc.Run(runCtx)
		close(done)
	}()

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-parent.Done():
			return parent.Err()
		case <-ticker.C:
			job, err := svc.store.GetJob(parent, jobID)
			if err != nil {
				continue
			}
			if job.IsTerminal() {
				fmt.Printf("job_id=%s status=%s\n", job.ID, job.Status)
				cancel()
				<-done
				return nil
			}
		}
	}
}
