package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx reply from a model provider.
type APIError struct {
	Provider   string
	Op         string
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s (retry after %ds)", msg, int(e.RetryAfter/time.Second))
	}
	return fmt.Sprintf("%s %s api error (%d): %s", e.Provider, e.Op, e.Status, msg)
}

// Temporary reports whether repeating the call later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// apiStatus returns the provider HTTP status carried by err, or 0.
func apiStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// postJSON sends payload as JSON and decodes a 2xx body into out.
func postJSON(ctx context.Context, client *http.Client, provider, op, url string, header http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s %s encode: %w", provider, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", provider, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Provider: provider, Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s decode: %w", provider, op, err)
	}
	return nil
}

// errorMessage understands both {"error":"msg"} and {"error":{"message":"msg"}}.
func errorMessage(body []byte) string {
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Error, &obj); err == nil {
		return obj.Message
	}
	return ""
}

func bearer(apiKey string) http.Header {
	h := http.Header{}
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
	return h
}
