package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driving"
)

// skipBootstrap marks commands that run without any backend.
const skipBootstrap = "skip-bootstrap"

// Services are the collaborators the commands drive. Everything but
// Ingestion and Answers may be nil.
type Services struct {
	Ingestion driving.IngestionService
	Answers   driving.AnswerService

	// Auth signs tokens for the token command; nil when no secret is set.
	Auth driven.AuthAdapter

	// Serve runs the API and/or worker until ctx is cancelled.
	Serve func(ctx context.Context, mode string) error

	// Close releases connections opened by the bootstrap.
	Close func() error
}

// Bootstrap builds Services from the loaded configuration.
type Bootstrap func(ctx context.Context) (*Services, error)

var (
	version = "dev"

	bootstrap Bootstrap
	services  *Services
)

var rootCmd = &cobra.Command{
	Use:   "sercha-tube",
	Short: "Question answering over video transcripts",
	Long: `sercha-tube ingests video transcripts into a hybrid (dense + BM25) index
and answers questions about a video from its own passages.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadServices,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		return closeServices()
	},
}

// SetVersion sets the version reported by the version command and the API.
func SetVersion(v string) {
	version = v
}

// SetBootstrap installs the function that wires the backends. It runs once,
// before the first command that needs services.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
	services = nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadServices(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipBootstrap] == "true" || services != nil {
		return nil
	}
	if bootstrap == nil {
		return errors.New("services not configured")
	}
	svc, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	services = svc
	return nil
}

func closeServices() error {
	if services == nil || services.Close == nil {
		return nil
	}
	err := services.Close()
	services = nil
	return err
}
