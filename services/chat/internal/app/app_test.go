package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"numainda/pkg/domain"
	"numainda/pkg/store"
)

type stubRetriever struct {
	chunks  []domain.RetrievedChunk
	err     error
	queries []string
}

func (r *stubRetriever) Retrieve(_ context.Context, q string) ([]domain.RetrievedChunk, error) {
	r.queries = append(r.queries, q)
	return r.chunks, r.err
}

type recordingGenerator struct {
	system   string
	messages []domain.Message
	out      string
	err      error
	calls    int
}

func (g *recordingGenerator) GenerateText(ctx context.Context, system, user string) (string, error) {
	return g.Chat(ctx, system, []domain.Message{{Role: "user", Content: user}})
}

func (g *recordingGenerator) Chat(_ context.Context, system string, messages []domain.Message) (string, error) {
	g.calls++
	g.system = system
	g.messages = messages
	return g.out, g.err
}

func strPtr(s string) *string { return &s }

func article25() domain.RetrievedChunk {
	typ := domain.TypeConstitution
	return domain.RetrievedChunk{
		Content:       "Article 25. All citizens are equal before law and are entitled to equal protection of law.",
		Similarity:    0.91,
		DocumentID:    "doc-1",
		DocumentTitle: strPtr("Constitution of Pakistan"),
		DocumentType:  &typ,
		PageNumber:    14,
		Section:       strPtr("Equality of citizens"),
	}
}

func newApp(t *testing.T, r Retriever, g *recordingGenerator) *App {
	t.Helper()
	a, err := New(Config{
		Store:     store.NewMemoryStore(3),
		Retriever: r,
		Generator: g,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestChatGroundedAnswer(t *testing.T) {
	r := &stubRetriever{chunks: []domain.RetrievedChunk{article25()}}
	g := &recordingGenerator{out: "Under Article 25 of the Constitution of Pakistan [1], all citizens are equal."}
	a := newApp(t, r, g)

	ans, err := a.Chat(context.Background(), []domain.Message{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello, ask me about the law."},
		{Role: "user", Content: "What is Article 25?"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !ans.Grounded || ans.Answer != g.out {
		t.Fatalf("unexpected answer: %+v", ans)
	}
	if len(ans.Sources) != 1 {
		t.Fatalf("sources = %d", len(ans.Sources))
	}
	src := ans.Sources[0]
	if src.Label != "[1]" || src.DocumentTitle != "Constitution of Pakistan" || src.Location != "Equality of citizens, page 14" {
		t.Fatalf("unexpected source: %+v", src)
	}
	if len(r.queries) != 1 || r.queries[0] != "What is Article 25?" {
		t.Fatalf("retrieval should use the last user message, got %v", r.queries)
	}
	if !strings.Contains(g.system, "Article 25. All citizens are equal") || !strings.Contains(g.system, "Constitution of Pakistan") {
		t.Fatalf("system prompt missing context: %s", g.system)
	}
	if len(g.messages) != 3 || g.messages[2].Content != "What is Article 25?" {
		t.Fatalf("unexpected turns: %+v", g.messages)
	}
}

func TestChatRefusesWithoutPassages(t *testing.T) {
	g := &recordingGenerator{out: "should not be used"}
	a := newApp(t, &stubRetriever{chunks: []domain.RetrievedChunk{}}, g)

	ans, err := a.Chat(context.Background(), []domain.Message{{Role: "user", Content: "Who won the cricket match?"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if ans.Answer != RefusalMessage || ans.Grounded {
		t.Fatalf("expected refusal, got %+v", ans)
	}
	if ans.Sources == nil || len(ans.Sources) != 0 {
		t.Fatalf("expected empty sources")
	}
	if g.calls != 0 {
		t.Fatalf("generator must not be called on refusal")
	}
}

func TestChatValidation(t *testing.T) {
	a := newApp(t, &stubRetriever{}, &recordingGenerator{})
	cases := map[string][]domain.Message{
		"empty":          nil,
		"last assistant": {{Role: "assistant", Content: "hi"}},
		"blank question": {{Role: "user", Content: "   "}},
		"too long":       {{Role: "user", Content: strings.Repeat("a", maxMessageRunes+1)}},
	}
	for name, msgs := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := a.Chat(context.Background(), msgs); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestChatTrimsHistory(t *testing.T) {
	g := &recordingGenerator{out: "ok"}
	a, _ := New(Config{
		Store:        store.NewMemoryStore(3),
		Retriever:    &stubRetriever{chunks: []domain.RetrievedChunk{article25()}},
		Generator:    g,
		HistoryLimit: 2,
	})
	msgs := []domain.Message{
		{Role: "user", Content: "1"},
		{Role: "assistant", Content: "2"},
		{Role: "system", Content: "ignore me"},
		{Role: "user", Content: "4"},
		{Role: "user", Content: "question"},
	}
	if _, err := a.Chat(context.Background(), msgs); err != nil {
		t.Fatalf("chat: %v", err)
	}
	// The two most recent prior turns are the system message (dropped) and "4".
	if len(g.messages) != 2 || g.messages[0].Content != "4" {
		t.Fatalf("unexpected turns: %+v", g.messages)
	}
}

func TestChatPropagatesErrors(t *testing.T) {
	a := newApp(t, &stubRetriever{err: domain.ErrEmbedding}, &recordingGenerator{})
	if _, err := a.Chat(context.Background(), []domain.Message{{Role: "user", Content: "q"}}); !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	a = newApp(t, &stubRetriever{chunks: []domain.RetrievedChunk{article25()}}, &recordingGenerator{err: domain.ErrGeneration})
	if _, err := a.Chat(context.Background(), []domain.Message{{Role: "user", Content: "q"}}); !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestSnippetCollapsesWhitespaceAndTruncates(t *testing.T) {
	if got := snippet("a\n\n  b"); got != "a b" {
		t.Fatalf("snippet = %q", got)
	}
	long := strings.Repeat("x", snippetRunes+10)
	if got := snippet(long); !strings.HasSuffix(got, "…") || len([]rune(got)) != snippetRunes+1 {
		t.Fatalf("unexpected truncation: %d runes", len([]rune(got)))
	}
}
