package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// OllamaClient talks to a local or self-hosted Ollama server.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOllamaClient(baseURL string) *OllamaClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// EmbedText uses /api/embed and falls back to the pre-0.3 /api/embeddings
// route on servers that do not have it.
func (c *OllamaClient) EmbedText(ctx context.Context, model, text string, dimensions int) ([]float32, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("ollama embedding model required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding text required")
	}

	var resp ollamaEmbedResponse
	err := c.post(ctx, "embed", "/api/embed", ollamaEmbedRequest{Model: model, Input: text, Dimensions: dimensions}, &resp)
	switch status := apiStatus(err); {
	case status == http.StatusNotFound || status == http.StatusMethodNotAllowed:
		return c.embedLegacy(ctx, model, text)
	case err != nil:
		return nil, err
	}
	switch {
	case len(resp.Embeddings) > 0 && len(resp.Embeddings[0]) > 0:
		return resp.Embeddings[0], nil
	case len(resp.Embedding) > 0:
		return resp.Embedding, nil
	}
	return nil, fmt.Errorf("ollama embed response missing embeddings")
}

func (c *OllamaClient) embedLegacy(ctx context.Context, model, text string) ([]float32, error) {
	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := c.post(ctx, "embeddings", "/api/embeddings", ollamaLegacyEmbedRequest{Model: model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embedding response missing embedding")
	}
	return resp.Embedding, nil
}

func (c *OllamaClient) post(ctx context.Context, op, path string, payload, out any) error {
	return postJSON(ctx, c.httpClient, "ollama", op, c.baseURL+path, nil, payload, out)
}

type ollamaEmbedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Embedding  []float32   `json:"embedding"`
}

type ollamaLegacyEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}
