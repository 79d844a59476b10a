// Package summary turns a work session into a short narrative using the
// Gemini generateContent API.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Defaults for the public Gemini endpoint.
const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1"
	DefaultModel    = "gemini-1.5-flash"
	DefaultTimeout  = 60 * time.Second
)

// Errors surfaced verbatim to the user.
var (
	ErrMissingAPIKey    = errors.New("Please set your Gemini API key in the settings tab.")
	ErrParseResponse    = errors.New("Failed to parse API response")
	ErrUnexpectedFormat = errors.New("Unexpected response format from API")
	ErrEmptySummary     = errors.New("No summary text found in API response")
)

const defaultFailureReason = "Failed to generate summary"

// APIError is a non-2xx response. Error returns the API's own message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// Request is the session context packaged into the prompt.
type Request struct {
	Notes    string
	Duration string
	TaskID   string
	// Tabs is a comma-separated list of related tab or document titles.
	Tabs string
}

// Options configures a Client.
type Options struct {
	Endpoint   string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls generateContent.
type Client struct {
	endpoint string
	model    string
	client   *http.Client
}

// New creates a Client, filling unset options with the defaults.
func New(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		model:    opts.Model,
		client:   opts.HTTPClient,
	}
}

// Model returns the model name used for summarization.
func (c *Client) Model() string { return c.model }

// Summarize sends the prompt built from req and returns the summary text.
func (c *Client) Summarize(ctx context.Context, apiKey string, req Request) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: BuildPrompt(req)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, c.model, url.QueryEscape(apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("summary request: %w", redactKey(err, apiKey))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apiError(resp.StatusCode, data)
	}
	return parseResponse(data)
}

func apiError(status int, body []byte) error {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != nil && e.Error.Message != "" {
		return &APIError{StatusCode: status, Message: e.Error.Message}
	}
	return &APIError{StatusCode: status, Message: defaultFailureReason}
}

// parseResponse extracts candidates[0].content.parts[0].text, falling back
// to a top-level text field. A candidate whose parts are missing is a parse
// failure; a body with neither shape is an unexpected format.
func parseResponse(data []byte) (string, error) {
	var r generateResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return "", ErrParseResponse
	}

	var text string
	switch {
	case len(r.Candidates) > 0 && r.Candidates[0].Content != nil:
		parts := r.Candidates[0].Content.Parts
		if len(parts) == 0 {
			return "", ErrParseResponse
		}
		text = parts[0].Text
	case r.Text != "":
		text = r.Text
	default:
		return "", ErrUnexpectedFormat
	}

	// whitespace-only text is returned; the surface decides whether it is usable
	if text == "" {
		return "", ErrEmptySummary
	}
	return text, nil
}

// redactKey keeps the API key out of transport errors, which embed the URL.
func redactKey(err error, apiKey string) error {
	msg := err.Error()
	escaped := url.QueryEscape(apiKey)
	if !strings.Contains(msg, escaped) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, escaped, "REDACTED"))
}

// BuildPrompt renders the four-line narrative instruction for req.
func BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Please provide a concise, 4-line summary of the following work session. ")
	sb.WriteString("Write it as a continuous narrative without any line numbers or headings:\n\n")
	sb.WriteString("Task Details:\n")
	fmt.Fprintf(&sb, "- Task ID: %s\n", req.TaskID)
	fmt.Fprintf(&sb, "- Duration: %s\n", req.Duration)
	fmt.Fprintf(&sb, "- Notes: %s\n", req.Notes)
	fmt.Fprintf(&sb, "- Related Tabs: %s\n\n", req.Tabs)
	sb.WriteString("Guidelines for the summary:\n")
	sb.WriteString("- First line: Current status and actual work performed\n")
	sb.WriteString("- Second line: Key activities or findings\n")
	sb.WriteString("- Third line: Next steps or transition plan\n")
	sb.WriteString("- Fourth line: Any critical notes or dependencies\n\n")
	sb.WriteString("Keep the summary:\n")
	sb.WriteString("- Professional and clear\n")
	sb.WriteString("- Honest about work performed\n")
	sb.WriteString("- Focused on actual status\n")
	sb.WriteString("- Free of line numbers or headings\n")
	sb.WriteString("- Written as a continuous narrative")
	return sb.String()
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
	Text string `json:"text"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
