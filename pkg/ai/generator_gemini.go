package ai

import (
	"context"
	"fmt"

	"numainda/pkg/domain"
)

// GeminiGenerator wraps GeminiClient with a fixed model.
type GeminiGenerator struct {
	client *GeminiClient
	model  string
}

func NewGeminiGenerator(client *GeminiClient, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

func (g *GeminiGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.Chat(ctx, systemPrompt, []domain.Message{{Role: "user", Content: userPrompt}})
}

// Chat maps assistant turns to Gemini's "model" role.
func (g *GeminiGenerator) Chat(ctx context.Context, systemPrompt string, messages []domain.Message) (string, error) {
	turns := chatTurns(messages)
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: no messages", domain.ErrValidation)
	}
	contents := make([]content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	text, err := g.client.Generate(ctx, g.model, systemPrompt, contents)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return text, nil
}
