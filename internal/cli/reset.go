package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"quiz-practice/internal/domain"
	"quiz-practice/internal/store"
)

// NewResetCmd clears a profile's stored answers, progress and anonymous session.
func NewResetCmd(configPath *string) *cobra.Command {
	var (
		answers  bool
		progress bool
		session  bool
		category string
		profile  string
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear stored answers, progress or the anonymous session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, b, err := loadConfigWithBackend(ctx, *configPath)
			if err != nil {
				return err
			}
			defer b.Close()
			stores, err := openStores(ctx, cfg, b, profile)
			if err != nil {
				return err
			}

			all := !answers && !progress && !session && category == ""
			var results []store.Result
			if category != "" {
				results = append(results, stores.Answers.ClearCategoryAnswers(ctx, domain.Category(category)))
			}
			if all || answers {
				results = append(results, stores.Answers.ClearAnswers(ctx))
			}
			if all || progress {
				results = append(results, stores.Progress.ClearProgress(ctx))
			}
			if all || session {
				results = append(results, stores.Sessions.ClearSession(ctx))
			}
			for _, res := range results {
				if !res.Persisted() {
					return fmt.Errorf("reset: %w", res.Err)
				}
			}
			log.Printf("reset of %s complete", profile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&answers, "answers", false, "clear saved answers")
	cmd.Flags().BoolVar(&progress, "progress", false, "clear progress and session history")
	cmd.Flags().BoolVar(&session, "session", false, "clear the anonymous session")
	cmd.Flags().StringVar(&category, "category", "", "clear saved answers of one category only")
	cmd.Flags().StringVar(&profile, "profile", "", "profile to reset, e.g. user:<subject>")
	return cmd
}
