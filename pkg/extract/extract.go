// Package extract turns uploaded PDF bytes into per-page plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"numainda/pkg/domain"
	"numainda/pkg/textsplit"
)

// PageSeparator joins page texts into the document content.
const PageSeparator = "\n"

// Page is the extracted text of one PDF page (1-based).
type Page struct {
	Number int
	Text   string
}

// Result holds the pages that carried any text, in order.
type Result struct {
	Pages  []Page
	Method string
}

// Text joins the page texts with PageSeparator.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, PageSeparator)
}

// PageMap maps rune offsets of Text back to page numbers.
func (r Result) PageMap() textsplit.PageMap {
	texts := make([]string, 0, len(r.Pages))
	numbers := make([]int, 0, len(r.Pages))
	for _, p := range r.Pages {
		texts = append(texts, p.Text)
		numbers = append(numbers, p.Number)
	}
	return textsplit.NewPageMap(texts, numbers, PageSeparator)
}

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Options configures an Extractor.
type Options struct {
	// UsePdftotext tries the poppler pdftotext binary before the Go parser.
	UsePdftotext bool
	Runner       CommandRunner
	Timeout      time.Duration
}

// Extractor is safe for concurrent use.
type Extractor struct {
	usePdftotext bool
	runner       CommandRunner
	timeout      time.Duration
}

// New builds an extractor.
func New(opts Options) *Extractor {
	runner := opts.Runner
	if runner == nil {
		runner = execRunner{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Extractor{usePdftotext: opts.UsePdftotext, runner: runner, timeout: timeout}
}

// Extract parses data as a PDF. It fails with domain.ErrExtraction when the
// data is not a readable PDF or no page has a text layer.
func (e *Extractor) Extract(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty file", domain.ErrExtraction)
	}
	if e.usePdftotext {
		pages, err := e.extractWithPdftotext(ctx, data)
		if err == nil && len(pages) > 0 {
			return Result{Pages: pages, Method: "pdftotext"}, nil
		}
		if err != nil {
			slog.Debug("pdftotext unavailable, using go parser", "err", err)
		}
	}
	pages, err := extractWithGoLib(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	if len(pages) == 0 {
		return Result{}, fmt.Errorf("%w: no extractable text (scanned or image-only PDF?)", domain.ErrExtraction)
	}
	return Result{Pages: pages, Method: "pdf"}, nil
}

func (e *Extractor) extractWithPdftotext(ctx context.Context, data []byte) ([]Page, error) {
	if _, ok := e.runner.(execRunner); ok {
		if _, err := exec.LookPath("pdftotext"); err != nil {
			return nil, fmt.Errorf("pdftotext not found: %w", err)
		}
	}
	tmp, err := os.CreateTemp("", "numainda-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	output, err := e.runner.Run(runCtx, "pdftotext", "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	return splitFormFeedPages(string(output)), nil
}

// splitFormFeedPages splits pdftotext output, which ends every page with \f.
func splitFormFeedPages(output string) []Page {
	raw := strings.Split(output, "\f")
	pages := make([]Page, 0, len(raw))
	for i, text := range raw {
		text = normalizeText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return pages
}

func extractWithGoLib(data []byte) (pages []Page, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	if total == 0 {
		return nil, errors.New("pdf has no pages")
	}
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely.
			slog.Debug("skip unreadable pdf page", "page", i, "err", err)
			continue
		}
		text = normalizeText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
