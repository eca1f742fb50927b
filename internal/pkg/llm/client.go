package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/Arcana/internal/pkg/env"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultTimeout       = 5 * time.Second
)

var (
	ErrNotConfigured = errors.New("llm: OPENAI_API_KEY is not configured")
	ErrTimeout       = errors.New("llm: request timed out")
	ErrRateLimited   = errors.New("llm: provider rate limit exceeded")
	ErrProvider      = errors.New("llm: provider error")
)

// Client talks to an OpenAI compatible chat completions endpoint.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration

	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		APIKey:  strings.TrimSpace(env.GetEnv("OPENAI_API_KEY", "")),
		Model:   strings.TrimSpace(env.GetEnv("OPENAI_MODEL", defaultOpenAIModel)),
		BaseURL: strings.TrimSpace(env.GetEnv("OPENAI_BASE_URL", defaultOpenAIBaseURL)),
		Timeout: env.GetEnvDuration("OPENAI_TIMEOUT", defaultTimeout),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateInterpretation sends prompt as a single user message and returns
// the first choice. Errors wrap ErrTimeout, ErrRateLimited or ErrProvider.
func (c *Client) GenerateInterpretation(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", ErrNotConfigured
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := c.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	payload, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(ctx, err) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return "", fmt.Errorf("%w: read body: %v", ErrProvider, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: status=%d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status=%d", ErrProvider, resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message == nil {
		return "", fmt.Errorf("%w: unexpected response shape", ErrProvider)
	}
	return out.Choices[0].Message.Content, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
