package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medicareplus/portal/internal/observability"
)

// Upstream outcomes the handler maps to distinct HTTP statuses. Anything
// else is a generic unavailability.
var (
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrQuotaExceeded = errors.New("upstream billing limit reached")
)

// systemPrompt scopes the assistant to general medical information. It is
// prepended to every forwarded conversation.
const systemPrompt = `You are a helpful medical information assistant for MediCare+. You provide general medical information about:
- Website usage and navigation
- Disease awareness and information
- Common symptoms and their general meanings
- Prevention tips and healthy lifestyle advice

IMPORTANT RULES:
1. You are NOT a doctor and cannot provide medical diagnoses
2. Always recommend consulting a healthcare professional for specific medical concerns
3. Never provide prescription drug recommendations
4. Be empathetic and supportive in your responses
5. Keep responses concise and easy to understand
6. If asked about emergencies, always recommend calling emergency services immediately

DISCLAIMER: Always remind users that you provide general information only and that they should consult healthcare professionals for medical advice.`

// apologyFallback covers a 2xx upstream response with an unexpected shape.
const apologyFallback = "I apologize, but I couldn't generate a response. Please try again."

type Message struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content" binding:"required"`
}

type Completer interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type ClientConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	MaxTokens int
}

// Client forwards a conversation to the hosted chat-completions API.
type Client struct {
	cfg   ClientConfig
	httpc *http.Client
	prom  *observability.Prom
}

func NewClient(cfg ClientConfig, prom *observability.Prom) *Client {
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
		prom:  prom,
	}
}

func (c *Client) Complete(ctx context.Context, msgs []Message) (string, error) {
	start := time.Now()

	text, err := c.complete(ctx, msgs)

	if c.prom != nil {
		c.prom.ChatUpstreamDuration.WithLabelValues(outcomeLabel(err)).Observe(time.Since(start).Seconds())
	}

	return text, err
}

func (c *Client) complete(ctx context.Context, msgs []Message) (string, error) {
	body := completionRequest{
		Model:     c.cfg.Model,
		Messages:  append([]Message{{Role: "system", Content: systemPrompt}}, msgs...),
		MaxTokens: c.cfg.MaxTokens,
	}

	payload, err := json.Marshal(body)

	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))

	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpc.Do(req)

	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", ErrQuotaExceeded
	case resp.StatusCode != http.StatusOK:
		// drain so the connection can be reused; detail stays server-side
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var decoded completionResponse

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return apologyFallback, nil
	}

	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return apologyFallback, nil
	}

	return decoded.Choices[0].Message.Content, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrQuotaExceeded):
		return "billing"
	default:
		return "error"
	}
}
