package summary

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{Endpoint: srv.URL})
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body) //nolint:errcheck
	}
}

func TestSummarize_SendsPromptAndParsesCandidate(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	var gotBody generateRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck
		respond(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"Shipped the parser."}]}}]}`)(w, r)
	})

	text, err := c.Summarize(context.Background(), "secret-key", Request{
		Notes: "wrote parser", Duration: "1h 5m", TaskID: "JIRA-42", Tabs: "Docs, PR #7",
	})
	require.NoError(t, err)
	assert.Equal(t, "Shipped the parser.", text)

	assert.Equal(t, "/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "application/json", gotContentType)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	prompt := gotBody.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "- Task ID: JIRA-42")
	assert.Contains(t, prompt, "- Duration: 1h 5m")
	assert.Contains(t, prompt, "- Notes: wrote parser")
	assert.Contains(t, prompt, "- Related Tabs: Docs, PR #7")
}

func TestSummarize_FallsBackToTopLevelText(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, `{"text":"fallback summary"}`))

	text, err := c.Summarize(context.Background(), "k", Request{Notes: "n"})
	require.NoError(t, err)
	assert.Equal(t, "fallback summary", text)
}

func TestSummarize_APIErrorMessageSurfacesVerbatim(t *testing.T) {
	c := newTestClient(t, respond(http.StatusTooManyRequests, `{"error":{"message":"quota exceeded"}}`))

	_, err := c.Summarize(context.Background(), "k", Request{Notes: "n"})
	require.Error(t, err)
	assert.Equal(t, "quota exceeded", err.Error())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestSummarize_APIErrorWithoutMessage(t *testing.T) {
	for _, body := range []string{`{}`, `not json`, `{"error":{}}`} {
		c := newTestClient(t, respond(http.StatusInternalServerError, body))
		_, err := c.Summarize(context.Background(), "k", Request{Notes: "n"})
		require.Error(t, err)
		assert.Equal(t, "Failed to generate summary", err.Error(), "body %q", body)
	}
}

func TestSummarize_ResponseShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"malformed json", `{"candidates":`, ErrParseResponse},
		{"candidate without parts", `{"candidates":[{"content":{"parts":[]}}]}`, ErrParseResponse},
		{"neither candidates nor text", `{"foo":"bar"}`, ErrUnexpectedFormat},
		{"empty candidate text", `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`, ErrEmptySummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, respond(http.StatusOK, tt.body))
			_, err := c.Summarize(context.Background(), "k", Request{Notes: "n"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSummarize_WhitespaceTextIsNotEmpty(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`))

	text, err := c.Summarize(context.Background(), "k", Request{Notes: "n"})
	require.NoError(t, err)
	assert.Equal(t, "  ", text)
}

func TestSummarize_RequiresAPIKey(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.Summarize(context.Background(), "  ", Request{Notes: "n"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called)
}

func TestSummarize_TransportErrorRedactsKey(t *testing.T) {
	c := New(Options{Endpoint: "http://127.0.0.1:1"})
	_, err := c.Summarize(context.Background(), "super-secret", Request{Notes: "n"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret")
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultEndpoint, c.endpoint)
}

func TestBuildPrompt_Shape(t *testing.T) {
	p := BuildPrompt(Request{TaskID: "T-1", Duration: "0h 30m", Notes: "notes", Tabs: ""})
	assert.Contains(t, p, "Please provide a concise, 4-line summary of the following work session.")
	assert.Contains(t, p, "- Fourth line: Any critical notes or dependencies")
	assert.Contains(t, p, "- Written as a continuous narrative")
}
