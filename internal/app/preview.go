package app

import (
	"errors"
	"fmt"

	"github.com/deusflow/autopost/internal/textnorm"
	"github.com/spf13/cobra"
)

func newRewriteCmd() *cobra.Command {
	var (
		title, summary string
		limit          int
		process        bool
	)
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Preview the rule-based rewrite of a headline (offline)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" && summary == "" {
				return errors.New("--title or --summary is required")
			}
			out := cmd.OutOrStdout()
			for _, c := range textnorm.Candidates(title, summary, limit) {
				fmt.Fprintf(out, "[%d] %-13s %s\n", c.Score, c.Origin, c.Text)
			}
			fmt.Fprintf(out, "best: %s\n", textnorm.Rewrite(title, summary, textnorm.RewriteOptions{Limit: limit}))

			if process {
				res := textnorm.ProcessItem(summary)
				fmt.Fprintf(out, "cleaned: %s\n", res.Cleaned)
				for i, s := range res.Summaries {
					fmt.Fprintf(out, "summary %d: %s\n", i+1, s.Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "headline")
	cmd.Flags().StringVar(&summary, "summary", "", "feed summary")
	cmd.Flags().IntVar(&limit, "limit", textnorm.DefaultLimit, "length limit")
	cmd.Flags().BoolVar(&process, "process", false, "also print the summary cleanup")
	return cmd
}
