package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

var (
	askHistory  []string
	askJSON     bool
	askPassages bool
)

var askCmd = &cobra.Command{
	Use:   "ask [video-id] [question]",
	Short: "Ask a question about a processed video",
	Long: `Answers from the video's own passages: hybrid recall (dense + BM25),
cross-encoder rerank of the best matches, then the generator.
Prior turns can be passed with --history role:content, oldest first.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVar(&askHistory, "history", nil, "prior turn as role:content (repeatable)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().BoolVar(&askPassages, "passages", false, "also print the passages the answer was built from")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if services == nil || services.Answers == nil {
		return errors.New("answer service not configured")
	}

	history, err := parseHistory(askHistory)
	if err != nil {
		return err
	}

	result, err := services.Answers.Ask(cmd.Context(), domain.AskRequest{
		VideoID:  args[0],
		Question: args[1],
		History:  history,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return printJSON(cmd, result)
	}

	cmd.Println(result.Answer)
	if askPassages && len(result.Passages) > 0 {
		cmd.Println()
		cmd.Println("Passages:")
		for i, p := range result.Passages {
			cmd.Printf("  [%d] %s\n", i+1, p)
		}
	}
	return nil
}

func parseHistory(turns []string) ([]domain.ConversationTurn, error) {
	out := make([]domain.ConversationTurn, 0, len(turns))
	for _, raw := range turns {
		role, content, ok := strings.Cut(raw, ":")
		if !ok {
			return nil, fmt.Errorf("invalid history turn %q: want role:content", raw)
		}
		out = append(out, domain.ConversationTurn{
			Role:    domain.Role(role).Normalize(),
			Content: strings.TrimSpace(content),
		})
	}
	return out, nil
}
