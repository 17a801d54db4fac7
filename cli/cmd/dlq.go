package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventlake-systems/eventlake/cli/pkg/output"
	"github.com/eventlake-systems/eventlake/common/dlq"
	"github.com/eventlake-systems/eventlake/common/logging"
	"github.com/eventlake-systems/eventlake/common/messaging/nats"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the dead letter queue",
	Long:  "Browse and manage records the pipeline gave up on.",
}

func openDLQ(ctx context.Context) (*dlq.JetStreamQueue, func(), error) {
	jsClient, err := nats.NewJetStreamClient(nats.Config{
		URL:  cfg.NATSURL,
		Name: "elake",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger := logging.New(logging.ParseLevel("warn"), "text")
	queue, err := dlq.NewJetStreamQueue(ctx, jsClient, logger)
	if err != nil {
		_ = jsClient.Close()
		return nil, nil, fmt.Errorf("open dead letter queue: %w", err)
	}

	return queue, func() { _ = jsClient.Close() }, nil
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered entries, oldest first",
	Example: `  elake dlq list
  elake dlq list --limit 20 --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		queue, closeFn, err := openDLQ(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := queue.List(ctx, limit)
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(entries)
		}

		if len(entries) == 0 {
			output.Success("Dead letter queue is empty")
			return nil
		}

		table := output.NewTable([]string{"TIMESTAMP", "STAGE", "REASON", "REFERENCE", "ATTEMPTS", "ERROR"})
		for _, entry := range entries {
			table.AddRow([]string{
				entry.Timestamp.Format(time.RFC3339),
				entry.Stage,
				entry.Reason,
				entry.Reference,
				strconv.Itoa(entry.Attempts),
				truncate(entry.Error, 60),
			})
		}
		table.Render()
		return nil
	},
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dead letter queue stream statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		queue, closeFn, err := openDLQ(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		return output.JSON(queue.Stats(ctx))
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove all entries from the dead letter queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return fmt.Errorf("purge is destructive; rerun with --force to confirm")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		queue, closeFn, err := openDLQ(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := queue.Purge(ctx); err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}

		output.Success("Dead letter queue purged")
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqStatsCmd)
	dlqCmd.AddCommand(dlqPurgeCmd)

	dlqListCmd.Flags().Int("limit", 100, "Maximum entries to return")
	dlqPurgeCmd.Flags().Bool("force", false, "Confirm the purge")
}
