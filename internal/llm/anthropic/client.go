package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/pflegedocs/internal/llm"
	"github.com/mkessler/pflegedocs/internal/resilience"
)

const (
	extractMaxTokens = 4096
	linkMaxTokens    = 256
)

// HTTPStatusError reports a non-2xx response from the messages API.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d: %s", e.StatusCode, e.Body)
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// AnalyzePage sends one rasterized page to the vision model and returns
// the raw text of the model's reply.
func (c *Client) AnalyzePage(ctx context.Context, jpeg []byte) (string, error) {
	reqID := uuid.NewString()
	start := time.Now()
	c.logger.InfoContext(ctx, "llm.extract.start",
		"req_id", reqID,
		"model", c.cfg.ExtractModel,
		"image_bytes", len(jpeg))

	req := messagesRequest{
		Model:     c.cfg.ExtractModel,
		MaxTokens: extractMaxTokens,
		System:    c.system,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: "image/jpeg",
						Data:      base64.StdEncoding.EncodeToString(jpeg),
					},
				},
				{Type: "text", Text: llm.UserPrompt},
			},
		}},
	}

	text, err := c.complete(ctx, "llm.extract", reqID, req)
	if err != nil {
		c.logger.ErrorContext(ctx, "llm.extract.failed",
			"req_id", reqID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", err
	}
	c.logger.InfoContext(ctx, "llm.extract.done",
		"req_id", reqID,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_chars", len(text))
	return text, nil
}

// LinkIssues asks the cheaper model whether a document belongs to one of
// the candidate issues in the prompt.
func (c *Client) LinkIssues(ctx context.Context, prompt string) (string, error) {
	reqID := uuid.NewString()
	start := time.Now()
	c.logger.InfoContext(ctx, "llm.link.start",
		"req_id", reqID,
		"model", c.cfg.LinkModel)

	req := messagesRequest{
		Model:     c.cfg.LinkModel,
		MaxTokens: linkMaxTokens,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: prompt}},
		}},
	}

	text, err := c.complete(ctx, "llm.link", reqID, req)
	if err != nil {
		c.logger.ErrorContext(ctx, "llm.link.failed",
			"req_id", reqID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", err
	}
	c.logger.InfoContext(ctx, "llm.link.done",
		"req_id", reqID,
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

func (c *Client) complete(ctx context.Context, operation, reqID string, req messagesRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	var text string
	err = c.exec.Execute(ctx, operation, func(ctx context.Context) error {
		out, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, classifyTransport)
	return text, err
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("anthropic: response contains no text block")
}

// classifyTransport marks rate limits, overload and server errors as
// retryable. Client errors and cancelled contexts are terminal.
func classifyTransport(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode >= 500:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	// Network-level failures (connection reset, DNS) are transient.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

var (
	_ llm.PageAnalyzer = (*Client)(nil)
	_ llm.IssueMatcher = (*Client)(nil)
)
