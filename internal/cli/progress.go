package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"quiz-practice/internal/domain"
)

// NewProgressCmd prints the stored progress.
func NewProgressCmd(configPath *string) *cobra.Command {
	var (
		asJSON  bool
		profile string
	)
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show recorded practice progress of one profile",
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
			snap := stores.Progress.Snapshot()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			fmt.Fprintf(out, "answered %d, correct %d, success rate %.1f%%, streak %d (best %d)\n\n",
				snap.TotalQuestionsAnswered, snap.TotalCorrect, snap.OverallSuccessRate, snap.CurrentStreak, snap.BestStreak)

			categories := make([]domain.Category, 0, len(snap.Categories))
			for cat := range snap.Categories {
				categories = append(categories, cat)
			}
			sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tTOTAL\tANSWERED\tCORRECT\tRATE")
			for _, cat := range categories {
				cp := snap.Categories[cat]
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f%%\n", cat, cp.TotalQuestions, cp.AnsweredQuestions, cp.CorrectAnswers, cp.SuccessRate)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full snapshot as JSON")
	cmd.Flags().StringVar(&profile, "profile", "", "profile to show, e.g. user:<subject>")
	return cmd
}
