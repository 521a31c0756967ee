package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"numainda/pkg/domain"
)

// maxSummaryInput bounds the text handed to the generator.
const maxSummaryInput = 24000

const billSummaryPrompt = `You summarize legislation for ordinary citizens.
Write a short, neutral summary of the bill below: its purpose, the main provisions and who it affects.
Use plain language. Do not speculate beyond the text.`

const proceedingSummaryPrompt = `You summarize parliamentary proceedings for ordinary citizens.
Write a short, neutral summary of the sitting below: the business taken up, bills or motions discussed and any decisions taken.
Use plain language. Do not speculate beyond the text.`

// summarize records a bill or proceeding for documents of those types. It
// never fails the ingestion; problems are logged and the document stays.
func (p *Pipeline) summarize(ctx context.Context, logger *slog.Logger, req Request, doc domain.Document, res *Result) {
	switch req.Type {
	case domain.TypeBill, domain.TypeParliamentaryBulletin:
	default:
		return
	}
	if p.generator == nil {
		logger.Info("no text generator configured, skipping summary")
		return
	}

	switch req.Type {
	case domain.TypeBill:
		summary, err := p.generateSummary(ctx, billSummaryPrompt, req.Title, doc.Content)
		if err != nil {
			logger.Warn("bill summary failed", "err", err)
			return
		}
		bill, err := p.store.CreateBill(ctx, domain.Bill{
			DocumentID:    doc.ID,
			Title:         req.Title,
			Status:        domain.BillPending,
			Summary:       summary,
			OriginalText:  doc.Content,
			SessionNumber: req.SessionNumber,
			BillNumber:    req.BillNumber,
		})
		if err != nil {
			logger.Warn("store bill failed", "err", err)
			return
		}
		res.Bill = &bill
		logger.Info("bill recorded", "bill_id", bill.ID)
	case domain.TypeParliamentaryBulletin:
		summary, err := p.generateSummary(ctx, proceedingSummaryPrompt, req.Title, doc.Content)
		if err != nil {
			logger.Warn("proceeding summary failed", "err", err)
			return
		}
		proceeding, err := p.store.CreateProceeding(ctx, domain.Proceeding{
			DocumentID:   doc.ID,
			Title:        req.Title,
			Date:         req.Date,
			Summary:      summary,
			OriginalText: doc.Content,
		})
		if err != nil {
			logger.Warn("store proceeding failed", "err", err)
			return
		}
		res.Proceeding = &proceeding
		logger.Info("proceeding recorded", "proceeding_id", proceeding.ID)
	}
}

func (p *Pipeline) generateSummary(ctx context.Context, systemPrompt, title, content string) (string, error) {
	user := fmt.Sprintf("Title: %s\n\n%s", title, truncateRunes(content, maxSummaryInput))
	summary, err := p.generator.GenerateText(ctx, systemPrompt, user)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("empty summary")
	}
	return summary, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
