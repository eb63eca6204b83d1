// Package httprequest provides the builtin HTTP request task handler.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/regenera-io/regenera/pkg/protocol"
	"github.com/regenera-io/regenera/pkg/template"
)

const TaskName = "http_request"

const defaultTimeout = 30 * time.Second

// Handler performs one HTTP request per dispatch. URL and body support
// templating against the variable bag; a non-2xx status is a task failure.
type Handler struct {
	client *http.Client
}

func New() *Handler {
	return &Handler{client: &http.Client{}}
}

func (h *Handler) Execute(ctx context.Context, input protocol.TaskInput) (map[string]any, error) {
	url, _ := input.Config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http_request task requires a url")
	}

	renderedURL, err := template.RenderWithInput(url, input)
	if err != nil {
		return nil, err
	}

	method, _ := input.Config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)

	var renderedBody string

	if body, ok := input.Config["body"].(string); ok && body != "" {
		renderedBody, err = template.RenderString(body, map[string]any{
			"variables": input.Variables,
			"vars":      input.Variables,
		})
		if err != nil {
			return nil, err
		}
	}

	attempts, delay := retryConfig(input.Config)

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			input.Logger.InfoContext(ctx, "Retrying HTTP request",
				"attempt", attempt, "of", attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := h.do(ctx, method, fmt.Sprint(renderedURL), renderedBody, input)
		if err == nil {
			return result, nil
		}

		lastErr = err
	}

	return nil, lastErr
}

func (h *Handler) do(ctx context.Context, method, url, body string, input protocol.TaskInput) (map[string]any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build http request: %w", err)
	}

	if headers, ok := input.Config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http request returned status %d", resp.StatusCode)
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		parsed = string(raw)
	}

	resultVar, _ := input.Config["result_variable"].(string)
	if resultVar == "" {
		resultVar = "http_response"
	}

	return map[string]any{
		resultVar: map[string]any{
			"status_code": resp.StatusCode,
			"body":        parsed,
		},
	}, nil
}

func retryConfig(config map[string]any) (int, time.Duration) {
	attempts := 1
	delay := time.Second

	retry, ok := config["retry"].(map[string]any)
	if !ok {
		return attempts, delay
	}

	if n, ok := retry["attempts"].(float64); ok && n >= 1 {
		attempts = int(n)
	}

	if d, ok := retry["delay_seconds"].(float64); ok && d >= 0 {
		delay = time.Duration(d * float64(time.Second))
	}

	return attempts, delay
}
