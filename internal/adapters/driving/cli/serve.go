package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var serveMode string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and/or the ingestion worker",
	Long: `Runs until interrupted. --mode selects what runs:
  api     HTTP API only
  worker  async ingestion worker only
  all     both (default)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "api, worker, or all (defaults to RUN_MODE)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	switch serveMode {
	case "", "api", "worker", "all":
	default:
		return fmt.Errorf("unknown mode: %s (use: api, worker, or all)", serveMode)
	}
	if services == nil || services.Serve == nil {
		return errors.New("server not configured")
	}
	return services.Serve(cmd.Context(), serveMode)
}
