// ABOUTME: HTTP client for the mediline gateway API.
// ABOUTME: Wraps chat, prescription parsing, voice commands, and health checks with typed results.

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds client construction parameters.
type Config struct {
	// BaseURL is the gateway root, e.g. "http://localhost:8080".
	BaseURL string
	// Token, when set, is sent as a bearer token on every request.
	Token string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 60 * time.Second

// Client talks to the gateway HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client from the given config.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "chat-client"),
	}
}

// Send posts one chat exchange and returns the parsed outcome.
//
// Error taxonomy: a *RemoteError means the backend answered with
// success=false; anything wrapping ErrUnreachable means the request never
// produced a well-formed response (rejected, timed out, malformed body).
func (c *Client) Send(ctx context.Context, req *Request) (*Reply, error) {
	var wire Response
	if err := c.post(ctx, "/api/chat", req, &wire); err != nil {
		return nil, err
	}
	return wire.outcome()
}

// PrescriptionData is the structured result of parsing a prescription image.
type PrescriptionData struct {
	Medications []Medication `json:"medications"`
	Patient     Person       `json:"patient"`
	Doctor      Person       `json:"doctor"`
	Date        string       `json:"date"`
	HumanReview bool         `json:"human_review_required"`
}

// Medication is one extracted prescription line.
type Medication struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Dose       string  `json:"dose"`
	Frequency  string  `json:"frequency"`
	Confidence float64 `json:"confidence"`
}

// Person identifies a patient or doctor on the prescription.
type Person struct {
	Name string `json:"name"`
	DOB  string `json:"dob,omitempty"`
}

// prescriptionResponse is the wire shape of POST /api/prescription/parse.
type prescriptionResponse struct {
	Success  bool              `json:"success"`
	Data     *PrescriptionData `json:"data,omitempty"`
	Agent    string            `json:"agent,omitempty"`
	Response string            `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// ParsePrescription submits an inline-encoded prescription image to the
// dedicated parsing endpoint.
func (c *Client) ParsePrescription(ctx context.Context, image string) (*PrescriptionData, string, error) {
	body := struct {
		Image string `json:"image"`
	}{Image: image}

	var wire prescriptionResponse
	if err := c.post(ctx, "/api/prescription/parse", body, &wire); err != nil {
		return nil, "", err
	}
	if !wire.Success {
		msg := wire.Error
		if msg == "" {
			msg = "the server reported an unspecified error"
		}
		return nil, "", &RemoteError{Message: msg}
	}
	return wire.Data, wire.Response, nil
}

// VoiceIntent is the parsed intent of a voice order command.
type VoiceIntent struct {
	Intent         string  `json:"intent"`
	MedicationName string  `json:"medication_name"`
	Quantity       float64 `json:"quantity"`
	Confidence     float64 `json:"confidence"`
}

// voiceResponse is the wire shape of POST /api/voice/command.
type voiceResponse struct {
	Success bool         `json:"success"`
	Data    *VoiceIntent `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// VoiceCommand submits a transcribed order command for intent extraction.
func (c *Client) VoiceCommand(ctx context.Context, text string) (*VoiceIntent, error) {
	body := struct {
		Text string `json:"text"`
	}{Text: text}

	var wire voiceResponse
	if err := c.post(ctx, "/api/voice/command", body, &wire); err != nil {
		return nil, err
	}
	if !wire.Success {
		msg := wire.Error
		if msg == "" {
			msg = "the server reported an unspecified error"
		}
		return nil, &RemoteError{Message: msg}
	}
	return wire.Data, nil
}

// HealthStatus is the gateway health document.
type HealthStatus struct {
	Status string            `json:"status"`
	Agents map[string]string `json:"agents"`
}

// Health queries GET /api/health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrUnreachable, err)
	}
	return &status, nil
}

// post marshals body, issues the request, and decodes the JSON response
// into out. Any transport-level problem wraps ErrUnreachable. Non-2xx
// statuses are tolerated as long as the body is valid JSON: the backend
// reports request-level failures in the body's success/error fields.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}

	c.logger.Debug("request settled",
		"path", path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed response body: %v", ErrUnreachable, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
