package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventlake-systems/eventlake/cli/pkg/output"
	"github.com/eventlake-systems/eventlake/common/metadata"
	"github.com/eventlake-systems/eventlake/common/models"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Inspect batch processing metadata",
	Long:  "Query the audit trail every pipeline invocation leaves behind.",
}

var metadataGetCmd = &cobra.Command{
	Use:   "get [batch_id]",
	Short: "Show the metadata record for one batch",
	Example: `  elake metadata get 3f8a1c2e-9b4d-4f6a-8e2b-1d5c7a9e0f3b
  elake metadata get raw/event_type=transaction/year=2024/month=01/day=15/hour=10/data_100.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		repo, err := metadata.NewPostgresRepository(ctx, cfg.ConnString())
		if err != nil {
			return fmt.Errorf("connect to metadata store: %w", err)
		}
		defer repo.Close()

		meta, err := repo.GetByBatchID(ctx, args[0])
		if err != nil {
			if errors.Is(err, metadata.ErrNotFound) {
				return fmt.Errorf("no metadata for batch %q", args[0])
			}
			return fmt.Errorf("lookup failed: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(meta)
		}

		renderMetadataTable([]*models.BatchMetadata{meta})
		return nil
	},
}

var metadataListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batches for a shard, newest first",
	Example: `  elake metadata list --shard shard-1
  elake metadata list --shard event_type=transaction --limit 20 --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shard, _ := cmd.Flags().GetString("shard")
		if shard == "" {
			return fmt.Errorf("--shard is required")
		}
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		repo, err := metadata.NewPostgresRepository(ctx, cfg.ConnString())
		if err != nil {
			return fmt.Errorf("connect to metadata store: %w", err)
		}
		defer repo.Close()

		rows, err := repo.ListByShard(ctx, shard, limit)
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(rows)
		}

		if len(rows) == 0 {
			output.Info("No batches recorded for shard %q", shard)
			return nil
		}
		renderMetadataTable(rows)
		return nil
	},
}

func renderMetadataTable(rows []*models.BatchMetadata) {
	table := output.NewTable([]string{"BATCH ID", "PROCESSED AT", "SHARD", "TOTAL", "OK", "FAILED", "PARTITIONS"})
	for _, row := range rows {
		table.AddRow([]string{
			row.BatchID,
			row.ProcessedAt.Format(time.RFC3339),
			row.ShardID,
			strconv.Itoa(row.TotalRecords),
			strconv.Itoa(row.SuccessRecords),
			strconv.Itoa(row.FailedRecords),
			strconv.Itoa(row.PartitionsCount),
		})
	}
	table.Render()
}

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.AddCommand(metadataGetCmd)
	metadataCmd.AddCommand(metadataListCmd)

	metadataListCmd.Flags().String("shard", "", "Shard ID to list batches for")
	metadataListCmd.Flags().Int("limit", 50, "Maximum rows to return")
}
