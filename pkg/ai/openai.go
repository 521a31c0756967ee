package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	DefaultOpenAIEmbeddingModel = "text-embedding-ada-002"
	DefaultOpenAIEmbeddingDim   = 1536
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOpenAIEmbedder builds an embedder. baseURL should include the /v1 prefix
// and defaults to the public OpenAI API. dimensions is only sent for models
// that accept a reduced output size; 0 leaves it to the model.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions int) *OpenAIEmbedder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultOpenAIEmbeddingModel
	}
	return &OpenAIEmbedder{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// EmbedText implements Embedder.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text, _ string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding text required")
	}
	reqBody := oaiEmbeddingRequest{Model: e.model, Input: text}
	// ada-002 rejects the dimensions parameter.
	if e.dimensions > 0 && !strings.HasPrefix(e.model, "text-embedding-ada") {
		reqBody.Dimensions = e.dimensions
	}
	var out oaiEmbeddingResponse
	if err := postJSON(ctx, e.httpClient, "openai", "embeddings", e.baseURL+"/embeddings", bearer(e.apiKey), reqBody, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding from openai api")
	}
	return out.Data[0].Embedding, nil
}

type oaiEmbeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type oaiEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}
