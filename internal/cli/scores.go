package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"narvalo-quiz/internal/app"
	"narvalo-quiz/internal/config"
	"narvalo-quiz/internal/domain"
	"narvalo-quiz/internal/infra/sqlite"
)

// NewResetScoresCmd zeroes the high and last score kept by the terminal game.
func NewResetScoresCmd(configPath *string) *cobra.Command {
	var player string
	cmd := &cobra.Command{
		Use:   "reset-scores",
		Short: "Reset the saved high and last score",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := sqlite.Open(cmd.Context(), cfg.SQLite.Path, cfg.Scores.Namespace)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := resetScores(cmd.Context(), store, player); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scores reset for %s\n", player)
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", defaultScoreKey, "key the scores are saved under")
	return cmd
}

func resetScores(ctx context.Context, store app.ScoreStore, key string) error {
	if err := store.Save(ctx, key, domain.ScoreRecord{}); err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}
	return nil
}
