// ABOUTME: Minimal Gemini generateContent REST client
// ABOUTME: Supports text prompts with an optional inline image part

package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.0-flash"

	// DefaultEndpoint is the Gemini REST API base.
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

	defaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned when the client was built without a key.
var ErrMissingAPIKey = errors.New("gemini api key not configured")

// APIError represents a non-success response from the Gemini API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error (status %d): %s", e.StatusCode, e.Message)
}

// BlockedError is returned when the prompt was refused by safety filters.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("gemini blocked prompt: %s", e.Reason)
}

// ImagePart is an inline image to include alongside the text prompt.
type ImagePart struct {
	MIMEType string
	Data     string // base64-encoded bytes, no data: prefix
}

// Config holds client configuration.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// New creates a Gemini client. The API key may be empty; Generate will
// then fail with ErrMissingAPIKey, which the gateway reports as an
// application-level chat failure rather than refusing to start.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger.With("component", "genai"),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// wire types for the generateContent request/response

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the prompt (and optional image) to the model and returns
// the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string, image *ImagePart) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	parts := []part{{Text: prompt}}
	if image != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: image.MIMEType,
			Data:     image.Data,
		}})
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Calling generateContent", "model", c.model, "with_image", image != nil)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gemini: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "unparseable response body"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if parsed.PromptFeedback.BlockReason != "" {
		return "", &BlockedError{Reason: parsed.PromptFeedback.BlockReason}
	}

	if len(parsed.Candidates) == 0 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "no candidates in response"}
	}

	var text string
	for _, p := range parsed.Candidates[0].Content.Parts {
		text += p.Text
	}

	return text, nil
}
