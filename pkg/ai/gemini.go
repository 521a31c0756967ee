package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google AI Studio (Gemini) API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient constructs a client with the provided API key.
func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	return NewGeminiClientWithBaseURL(apiKey, defaultGeminiBaseURL)
}

// NewGeminiClientWithBaseURL targets a proxy or test endpoint instead of
// the public API.
func NewGeminiClientWithBaseURL(apiKey, baseURL string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// EmbedText generates an embedding for the input text.
func (c *GeminiClient) EmbedText(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	reqBody := embedRequest{
		Content: content{
			Parts: []part{{Text: text}},
		},
	}
	if taskType != "" {
		reqBody.TaskType = taskType
	}
	var resp embedResponse
	if err := c.post(ctx, model, "embedContent", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed response missing values")
	}
	return resp.Embedding.Values, nil
}

// Generate runs generateContent over the given turns.
func (c *GeminiClient) Generate(ctx context.Context, model, systemPrompt string, contents []content) (string, error) {
	reqBody := generateRequest{Contents: contents}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.SystemInstruction = &content{
			Parts: []part{{Text: systemPrompt}},
		}
	}
	var resp generateResponse
	if err := c.post(ctx, model, "generateContent", reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

func (c *GeminiClient) post(ctx context.Context, model, method string, payload, out any) error {
	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, normalizeModel(model), method)
	// Header auth keeps the key out of proxy and access logs.
	header := http.Header{"X-Goog-Api-Key": []string{c.apiKey}}
	return postJSON(ctx, c.httpClient, "gemini", method, url, header, payload, out)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type embedRequest struct {
	Content  content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}
