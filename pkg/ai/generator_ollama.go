package ai

import (
	"context"
	"fmt"
	"strings"

	"numainda/pkg/domain"
)

// OllamaGenerator generates through the Ollama /api/chat endpoint.
type OllamaGenerator struct {
	client *OllamaClient
	model  string
}

func NewOllamaGenerator(client *OllamaClient, model string) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model}
}

func (g *OllamaGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.Chat(ctx, systemPrompt, []domain.Message{{Role: "user", Content: userPrompt}})
}

func (g *OllamaGenerator) Chat(ctx context.Context, systemPrompt string, messages []domain.Message) (string, error) {
	model := strings.TrimSpace(g.model)
	if model == "" {
		return "", fmt.Errorf("ollama generation model required")
	}
	turns := chatTurns(messages)
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: no messages", domain.ErrValidation)
	}
	req := ollamaChatRequest{Model: model, Stream: false}
	if strings.TrimSpace(systemPrompt) != "" {
		req.Messages = append(req.Messages, ollamaChatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range turns {
		req.Messages = append(req.Messages, ollamaChatMessage{Role: m.Role, Content: m.Content})
	}

	var resp ollamaChatResponse
	if err := g.client.post(ctx, "chat", "/api/chat", req, &resp); err != nil {
		return "", fmt.Errorf("%w: ollama chat: %w", domain.ErrGeneration, err)
	}
	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from ollama", domain.ErrGeneration)
	}
	return text, nil
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}
