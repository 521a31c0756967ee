package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"numainda/pkg/ai"
	"numainda/pkg/domain"
)

// RefusalMessage is returned verbatim when no passage clears the
// similarity threshold.
const RefusalMessage = "I don't have sufficient information in the provided documents to answer this question. " +
	"If you want to ask anything related to the Constitution, election law, bills or parliamentary proceedings, feel free to ask."

const (
	defaultHistoryLimit = 10
	maxMessageRunes     = 4000
	snippetRunes        = 240
)

// Retriever returns ranked passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error)
}

// LegislationStore reads the bill and proceeding summaries.
type LegislationStore interface {
	GetBill(ctx context.Context, id string) (domain.Bill, bool, error)
	ListBills(ctx context.Context) ([]domain.Bill, error)
	GetProceeding(ctx context.Context, id string) (domain.Proceeding, bool, error)
	ListProceedings(ctx context.Context) ([]domain.Proceeding, error)
}

// Config holds runtime dependencies for the core application.
type Config struct {
	Store     LegislationStore
	Retriever Retriever
	Generator ai.ChatGenerator
	// HistoryLimit caps prior turns sent to the model; 0 means 10.
	HistoryLimit int
	Logger       *slog.Logger
	Now          func() time.Time
}

// App answers citizen questions from retrieved passages.
type App struct {
	store        LegislationStore
	retriever    Retriever
	generator    ai.ChatGenerator
	historyLimit int
	logger       *slog.Logger
	now          func() time.Time
}

// New validates cfg.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Retriever == nil {
		return nil, errors.New("retriever required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator required")
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:        cfg.Store,
		retriever:    cfg.Retriever,
		generator:    cfg.Generator,
		historyLimit: limit,
		logger:       logger,
		now:          now,
	}, nil
}

// Query returns the ranked passages for query without generating an answer.
func (a *App) Query(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	return a.retriever.Retrieve(ctx, query)
}

// Chat answers the last user message. When retrieval finds nothing the
// fixed refusal is returned and the model is not called.
func (a *App) Chat(ctx context.Context, messages []domain.Message) (domain.Answer, error) {
	history, question, err := a.normalizeMessages(messages)
	if err != nil {
		return domain.Answer{}, err
	}
	chunks, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		return domain.Answer{}, err
	}
	if len(chunks) == 0 {
		a.logger.Info("no relevant passages, refusing", "question_runes", utf8.RuneCountInString(question))
		return domain.Answer{
			Answer:    RefusalMessage,
			Sources:   []domain.Source{},
			Grounded:  false,
			CreatedAt: a.now().UTC(),
		}, nil
	}

	contextText, sources := buildContext(chunks)
	turns := append(history, domain.Message{Role: "user", Content: question})
	response, err := a.generator.Chat(ctx, systemPrompt(contextText), turns)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	return domain.Answer{
		Answer:    response,
		Sources:   sources,
		Grounded:  true,
		CreatedAt: a.now().UTC(),
	}, nil
}

func (a *App) ListBills(ctx context.Context) ([]domain.Bill, error) {
	return a.store.ListBills(ctx)
}

func (a *App) GetBill(ctx context.Context, id string) (domain.Bill, bool, error) {
	return a.store.GetBill(ctx, id)
}

func (a *App) ListProceedings(ctx context.Context) ([]domain.Proceeding, error) {
	return a.store.ListProceedings(ctx)
}

func (a *App) GetProceeding(ctx context.Context, id string) (domain.Proceeding, bool, error) {
	return a.store.GetProceeding(ctx, id)
}

// normalizeMessages splits the conversation into prior turns and the
// question being asked, which must be the last message.
func (a *App) normalizeMessages(messages []domain.Message) ([]domain.Message, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("%w: messages required", domain.ErrValidation)
	}
	last := messages[len(messages)-1]
	if !strings.EqualFold(strings.TrimSpace(last.Role), "user") {
		return nil, "", fmt.Errorf("%w: last message must come from the user", domain.ErrValidation)
	}
	question := strings.TrimSpace(last.Content)
	if question == "" {
		return nil, "", fmt.Errorf("%w: question required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(question) > maxMessageRunes {
		return nil, "", fmt.Errorf("%w: question exceeds %d characters", domain.ErrValidation, maxMessageRunes)
	}

	prior := messages[:len(messages)-1]
	if len(prior) > a.historyLimit {
		prior = prior[len(prior)-a.historyLimit:]
	}
	history := make([]domain.Message, 0, len(prior))
	for _, m := range prior {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		history = append(history, domain.Message{Role: role, Content: truncateRunes(m.Content, maxMessageRunes)})
	}
	return history, question, nil
}

func systemPrompt(contextText string) string {
	return `You are Numainda, an assistant that explains Pakistan's Constitution, election law, bills and parliamentary proceedings to citizens.

Relevant passages from official documents:

` + contextText + `
Instructions:
1. Answer ONLY from the passages above. Do not add outside knowledge or speculate.
2. Start by naming the document, article or section you rely on, and cite passages by their [n] label.
3. Use short paragraphs or lists and plain language for readers without legal training.
4. If the passages do not answer the question, reply exactly: "` + RefusalMessage + `"`
}

func buildContext(chunks []domain.RetrievedChunk) (string, []domain.Source) {
	var sb strings.Builder
	sources := make([]domain.Source, 0, len(chunks))
	for i, c := range chunks {
		label := fmt.Sprintf("[%d]", i+1)
		title := derefString(c.DocumentTitle)
		docType := ""
		if c.DocumentType != nil {
			docType = string(*c.DocumentType)
		}
		location := chunkLocation(c)

		sb.WriteString(label)
		if title != "" {
			sb.WriteString(" Document: " + title)
		}
		if docType != "" {
			sb.WriteString(" (" + docType + ")")
		}
		if location != "" {
			sb.WriteString(", " + location)
		}
		sb.WriteString("\n")
		sb.WriteString(c.Content)
		sb.WriteString("\n---\n")

		sources = append(sources, domain.Source{
			Label:         label,
			DocumentTitle: title,
			DocumentType:  docType,
			Location:      location,
			Snippet:       snippet(c.Content),
			Similarity:    c.Similarity,
		})
	}
	return sb.String(), sources
}

func chunkLocation(c domain.RetrievedChunk) string {
	var parts []string
	if c.Section != nil && strings.TrimSpace(*c.Section) != "" {
		parts = append(parts, strings.TrimSpace(*c.Section))
	}
	if c.PageNumber > 0 {
		parts = append(parts, fmt.Sprintf("page %d", c.PageNumber))
	}
	if c.Timestamp != nil && strings.TrimSpace(*c.Timestamp) != "" {
		parts = append(parts, "at "+strings.TrimSpace(*c.Timestamp))
	}
	return strings.Join(parts, ", ")
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= snippetRunes {
		return text
	}
	return truncateRunes(text, snippetRunes) + "…"
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
