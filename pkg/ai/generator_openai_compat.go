package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"numainda/pkg/domain"
)

// OpenAICompatGenerator calls an OpenAI-compatible /chat/completions
// endpoint (OpenAI, vLLM, LiteLLM, OpenRouter and similar).
type OpenAICompatGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOpenAICompatGenerator builds a generator. baseURL includes the /v1
// prefix. apiKey may be empty for local servers.
func NewOpenAICompatGenerator(baseURL, apiKey, model string) *OpenAICompatGenerator {
	return &OpenAICompatGenerator{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		// Legal answers should not wander.
		temperature: 0.2,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *OpenAICompatGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.Chat(ctx, systemPrompt, []domain.Message{{Role: "user", Content: userPrompt}})
}

func (g *OpenAICompatGenerator) Chat(ctx context.Context, systemPrompt string, messages []domain.Message) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("openai-compat generation model required")
	}
	turns := chatTurns(messages)
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: no messages", domain.ErrValidation)
	}
	reqBody := oaiChatRequest{Model: g.model, Temperature: &g.temperature}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.Messages = append(reqBody.Messages, oaiMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range turns {
		reqBody.Messages = append(reqBody.Messages, oaiMessage{Role: m.Role, Content: m.Content})
	}
	text, err := g.complete(ctx, reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return text, nil
}

func (g *OpenAICompatGenerator) complete(ctx context.Context, reqBody oaiChatRequest) (string, error) {
	var resp oaiChatResponse
	if err := postJSON(ctx, g.httpClient, "openai-compat", "chat", g.baseURL+"/chat/completions", bearer(g.apiKey), reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai-compat api")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from openai-compat api")
	}
	return text, nil
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}
