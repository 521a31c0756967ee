package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDocumentsCmd(with wrapFunc) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "List stored documents",
		Args:    cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, _ []string, b *backend) error {
			docs, err := b.Store.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				data, err := json.MarshalIndent(docs, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal documents: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			if len(docs) == 0 {
				cmd.Println("No documents.")
				return nil
			}
			for _, d := range docs {
				cmd.Printf("%s  %-22s  %-9s  %4d/%-4d  %s\n",
					d.ID, d.Type, d.IngestStatus, d.EmbeddedChunks, d.TotalChunks, d.Title)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
