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
	"net/url"
	"strings"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com/v1"
	groqDefaultBaseURL   = "https://api.groq.com/openai/v1"

	// Low temperature for consistent reviews.
	completionTemperature = 0.1
)

// chatClient talks to an OpenAI-compatible /chat/completions endpoint.
type chatClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	http     *http.Client
}

func newChatClient(opts Options, defaultBaseURL string) *chatClient {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &chatClient{
		provider: opts.Provider,
		model:    opts.Model,
		apiKey:   opts.APIKey,
		baseURL:  baseURL,
		http:     http.DefaultClient,
	}
}

func (c *chatClient) Name() string  { return c.provider }
func (c *chatClient) Model() string { return c.model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one prompt and returns the reply text plus usage.
func (c *chatClient) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	if strings.TrimSpace(c.model) == "" {
		return "", Usage{}, fmt.Errorf("%s model not configured", c.provider)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: completionTemperature,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("%s request: %w", c.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("%s request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Preserve context cancellation/timeout errors so callers
		// can distinguish deadline from provider failure.
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", Usage{}, fmt.Errorf("%s request timeout: %w", c.provider, ctx.Err())
			}
			return "", Usage{}, ctx.Err()
		}
		if msg := classifyNetworkError(err, c.baseURL); msg != "" {
			return "", Usage{}, fmt.Errorf("%s: %w", msg, err)
		}
		return "", Usage{}, fmt.Errorf("%s not reachable: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", Usage{}, c.classifyStatus(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", Usage{}, fmt.Errorf("%s decode response: %w", c.provider, err)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("%s response contained no choices", c.provider)
	}

	return parsed.Choices[0].Message.Content, parsed.Usage, nil
}

// classifyStatus turns a non-200 response into a descriptive error.
func (c *chatClient) classifyStatus(resp *http.Response) error {
	slurp, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("%s read error response: %w", c.provider, err)
	}
	bodyStr := strings.TrimSpace(string(slurp))

	var errResp chatErrorResponse
	if json.Unmarshal(slurp, &errResp) == nil && errResp.Error.Message != "" {
		bodyStr = errResp.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s authentication failed: %s (check API key)", c.provider, bodyStr)
	case http.StatusNotFound:
		return fmt.Errorf("model %q not found: %s", c.model, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %s: %w", c.provider, bodyStr, ErrRateLimited)
	case http.StatusBadRequest:
		return fmt.Errorf("invalid request for model %q: %s", c.model, bodyStr)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%s server error (%s): %s", c.provider, resp.Status, bodyStr)
	default:
		return fmt.Errorf("%s API error (%s): %s", c.provider, resp.Status, bodyStr)
	}
}

// classifyNetworkError categorizes network errors into descriptive
// messages, distinguishing refused connections, timeouts, and DNS
// failures.
func classifyNetworkError(err error, baseURL string) string {
	if err == nil {
		return ""
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Sprintf("connection timeout: %s did not respond in time", baseURL)
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return fmt.Sprintf("DNS error: cannot resolve %s (%s)", dnsErr.Name, dnsErr.Err)
		}
		if urlErr.Err != nil {
			if strings.Contains(urlErr.Err.Error(), "connection refused") {
				return fmt.Sprintf("connection refused: no server at %s", baseURL)
			}
			if strings.Contains(urlErr.Err.Error(), "no such host") {
				return fmt.Sprintf("DNS error: cannot resolve hostname for %s", baseURL)
			}
		}
		return fmt.Sprintf("network error: %v", urlErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Sprintf("connection timeout: %s did not respond in time", baseURL)
		}
		return fmt.Sprintf("network error: %v", netErr)
	}

	return fmt.Sprintf("connection error: %v", err)
}
