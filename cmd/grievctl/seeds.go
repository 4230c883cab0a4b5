package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/timmy/grievo/internal/app"
	"github.com/timmy/grievo/internal/domain"
)

func newSeedsCmd() *cobra.Command {
	var text string
	var language string

	cmd := &cobra.Command{
		Use:   "seeds",
		Short: "Load the embedding model, seed the classifier and optionally classify text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := a.SeedClassifier(cmd.Context()); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Seeded %d categories with %s (%d dimensions)\n",
					len(a.Classifier.Categories()), a.Embedder.ModelVersion(), a.Embedder.Dimensions())
				if text == "" {
					return nil
				}

				preview, err := a.Complaints.Preview(cmd.Context(), text, domain.Language(language))
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, s := range preview.SimilarityBreakdown {
					fmt.Fprintf(w, "%s\t%.3f\n", s.Category, s.Score)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "=> %s (%s, score %.4f)\n", preview.Category, preview.PriorityLabel, preview.PriorityScore)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "complaint text to classify after seeding")
	cmd.Flags().StringVar(&language, "language", "en", "language of --text (en, ta, hi)")
	return cmd
}
