package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"numainda/pkg/domain"
	"numainda/pkg/ingest"
)

func newIngestCmd(with wrapFunc) *cobra.Command {
	var (
		req        ingest.Request
		docType    string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Extract, chunk and embed a PDF into the store",
		Long: `Runs the ingestion pipeline in-process on a local PDF.
Bills and parliamentary bulletins are summarized when a generation provider is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string, b *backend) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			req.File = data
			req.FileName = filepath.Base(args[0])
			req.Type = domain.DocumentType(docType)
			req.OnProgress = func(embedded, total int) {
				cmd.PrintErrf("embedded %d/%d chunks\n", embedded, total)
			}

			pipeline, err := ingest.New(ingest.Config{
				Store:     b.Store,
				Client:    b.Client,
				Extractor: b.Extractor,
				Generator: b.Generator,
				Logger:    b.Logger,
			})
			if err != nil {
				return err
			}
			res, err := pipeline.Ingest(cmd.Context(), req)
			if jsonOutput {
				data, merr := json.MarshalIndent(res, "", "  ")
				if merr != nil {
					return fmt.Errorf("failed to marshal result: %w", merr)
				}
				cmd.Println(string(data))
				return err
			}
			if err != nil {
				if res.Document != nil {
					cmd.Printf("Document %s stored with status %s (%d/%d chunks)\n",
						res.Document.ID, res.Document.IngestStatus, res.Document.EmbeddedChunks, res.Document.TotalChunks)
				}
				return err
			}
			cmd.Println(res.Message)
			cmd.Printf("  ID:     %s\n", res.Document.ID)
			cmd.Printf("  Title:  %s\n", res.Document.Title)
			cmd.Printf("  Chunks: %d\n", res.Document.EmbeddedChunks)
			if res.Bill != nil {
				cmd.Printf("  Bill:   %s\n", res.Bill.ID)
			}
			if res.Proceeding != nil {
				cmd.Printf("  Proceeding: %s\n", res.Proceeding.ID)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "", "document type: constitution, election_law, parliamentary_bulletin, bill, other")
	cmd.Flags().StringVar(&req.Title, "title", "", "document title (defaults to the file name)")
	cmd.Flags().StringVar(&req.Date, "date", "", "sitting date YYYY-MM-DD, required for parliamentary bulletins")
	cmd.Flags().StringVar(&req.BillNumber, "bill-number", "", "bill number")
	cmd.Flags().StringVar(&req.SessionNumber, "session", "", "session number")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the result as JSON")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
