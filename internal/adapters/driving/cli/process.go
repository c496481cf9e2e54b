package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	processAsync bool
	processJSON  bool
	statusJSON   bool
)

var processCmd = &cobra.Command{
	Use:   "process [video-id]",
	Short: "Ingest a video's transcript",
	Long: `Fetches the transcript, splits it into overlapping passages, fits the
video's BM25 snapshot and indexes dense and sparse vectors for every passage.
With --async the job is queued for a worker instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var statusCmd = &cobra.Command{
	Use:   "status [video-id]",
	Short: "Show what is indexed for a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [video-id]",
	Short: "Remove a video's passages and snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	processCmd.Flags().BoolVar(&processAsync, "async", false, "queue the ingestion instead of waiting")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "output the result as JSON")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output the status as JSON")
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestion == nil {
		return errors.New("ingestion service not configured")
	}
	videoID := args[0]

	if processAsync {
		task, err := services.Ingestion.ProcessAsync(cmd.Context(), videoID)
		if err != nil {
			return fmt.Errorf("queue ingestion: %w", err)
		}
		if processJSON {
			return printJSON(cmd, task)
		}
		cmd.Printf("Queued %s as task %s\n", videoID, task.ID)
		return nil
	}

	result, err := services.Ingestion.Process(cmd.Context(), videoID)
	if err != nil {
		if processJSON && result != nil {
			_ = printJSON(cmd, result)
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if processJSON {
		return printJSON(cmd, result)
	}
	cmd.Printf("Processed %s: %d chunks indexed\n", result.VideoID, result.Chunks)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestion == nil {
		return errors.New("ingestion service not configured")
	}

	status, err := services.Ingestion.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if statusJSON {
		return printJSON(cmd, status)
	}

	cmd.Printf("Video:     %s\n", status.VideoID)
	cmd.Printf("Processed: %t\n", status.Processed)
	cmd.Printf("Passages:  %d\n", status.PassageCount)
	if rec := status.Ingestion; rec != nil {
		cmd.Printf("Last run:  %s (%s)\n", rec.State, rec.StartedAt.Format("2006-01-02 15:04:05"))
		if rec.Error != "" {
			cmd.Printf("Error:     %s\n", rec.Error)
		}
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestion == nil {
		return errors.New("ingestion service not configured")
	}
	if err := services.Ingestion.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
