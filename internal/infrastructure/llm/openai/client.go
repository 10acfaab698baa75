package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dininghall-ai/menu-search/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible chat/embeddings API. All calls share
// one rate limiter so bursts from the chat and worker paths cannot exceed the
// account quota together.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
	// RequestsPerSecond bounds outbound calls; zero disables limiting.
	RequestsPerSecond float64
	Timeout           time.Duration
	Executor          *resilience.Executor
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   opts.Executor,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatJSON runs a deterministic completion in JSON mode and returns the raw
// message content.
func (c *Client) chatJSON(ctx context.Context, operation, system, user string) (string, error) {
	req := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	return c.chat(ctx, operation, req)
}

func (c *Client) chatText(ctx context.Context, operation, system, user string, temperature float64, maxTokens int) (string, error) {
	req := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	return c.chat(ctx, operation, req)
}

func (c *Client) chat(ctx context.Context, operation string, req chatRequest) (string, error) {
	var content string
	call := func(ctx context.Context) error {
		var resp chatResponse
		if err := c.postJSON(ctx, "/chat/completions", req, &resp, operation); err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return &HTTPStatusError{Operation: operation, StatusCode: http.StatusOK, Status: "200 OK", Body: "empty choices"}
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	return content, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	call := func(ctx context.Context) error {
		var resp embedResponse
		if err := c.postJSON(ctx, "/embeddings", embedRequest{Model: c.embedModel, Input: texts}, &resp, "embed"); err != nil {
			return err
		}
		vectors = make([][]float32, 0, len(resp.Data))
		for _, row := range resp.Data {
			vectors = append(vectors, row.Embedding)
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "embed", call, classifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	return vectors, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
