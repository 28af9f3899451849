package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/menosai/menos/internal/domain"
)

// knownMigrations lists every schema change menosctl knows how to apply, in
// order. "up" applies whichever of these aren't yet recorded; the graph
// constraints and vector collection themselves are idempotent, so reapplying
// one that's already live is a no-op on the store side.
var knownMigrations = []string{
	"0001_initial_schema",
}

func newMigrateCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the graph and vector schema",
		Long: `migrate applies and reports on the Neo4j constraints and Qdrant collection
that the rest of the pipeline depends on existing.`,
	}

	cmd.AddCommand(newMigrateUpCmd(log), newMigrateStatusCmd(log))
	return cmd
}

func newMigrateUpCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply any pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context(), log)
		},
	}
}

func newMigrateStatusCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd.Context(), log)
		},
	}
}

func runMigrateUp(ctx context.Context, log *slog.Logger) error {
	svc, err := newServices(ctx, log)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	if err := svc.store.EnsureSchema(ctx, svc.cfg.EmbeddingDims); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	applied, err := svc.store.ListMigrations(ctx)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	appliedNames := make(map[string]bool, len(applied))
	for _, m := range applied {
		appliedNames[m.Name] = true
	}

	for _, name := range knownMigrations {
		if appliedNames[name] {
			continue
		}
		if err := svc.store.RecordMigration(ctx, domain.Migration{Name: name, AppliedAt: time.Now().UTC()}); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		fmt.Printf("applied %s\n", name)
	}
	fmt.Println("schema up to date")
	return nil
}

func runMigrateStatus(ctx context.Context, log *slog.Logger) error {
	svc, err := newServices(ctx, log)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	applied, err := svc.store.ListMigrations(ctx)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	appliedNames := make(map[string]bool, len(applied))
	for _, m := range applied {
		appliedNames[m.Name] = true
	}

	for _, name := range knownMigrations {
		status := "pending"
		if appliedNames[name] {
			status = "applied"
		}
		fmt.Printf("%-24s %s\n", name, status)
	}
	return nil
}
