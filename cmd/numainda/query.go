package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"numainda/pkg/retrieval"
)

func newQueryCmd(with wrapFunc) *cobra.Command {
	var (
		threshold  float64
		topK       int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Show the stored passages most similar to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string, b *backend) error {
			r, err := retrieval.New(b.Client, b.Store,
				retrieval.WithThreshold(threshold),
				retrieval.WithTopK(topK),
				retrieval.WithLogger(b.Logger),
			)
			if err != nil {
				return err
			}
			results, err := r.Retrieve(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
			if jsonOutput {
				data, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			if len(results) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			for i, res := range results {
				title := res.DocumentID
				if res.DocumentTitle != nil {
					title = *res.DocumentTitle
				}
				cmd.Printf("  [%d] %s, page %d (%.3f)\n", i+1, title, res.PageNumber, res.Similarity)
				if res.Section != nil {
					cmd.Printf("      %s\n", *res.Section)
				}
				cmd.Printf("      %s\n\n", preview(res.Content, 200))
			}
			return nil
		}),
	}
	cmd.Flags().Float64Var(&threshold, "threshold", retrieval.DefaultThreshold, "minimum cosine similarity")
	cmd.Flags().IntVarP(&topK, "limit", "n", retrieval.DefaultTopK, "maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output results as JSON")
	return cmd
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
